package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule is the boolean operator of a group.
type Rule string

const (
	And Rule = "and"
	Or  Rule = "or"
)

// Operator is the comparison applied by a leaf.
type Operator string

const (
	Equal              Operator = "equal"
	NotEqual           Operator = "notequal"
	LessThan           Operator = "lessthan"
	LessThanOrEqual    Operator = "lessthanorequal"
	GreaterThan        Operator = "greaterthan"
	GreaterThanOrEqual Operator = "greaterthanorequal"
)

// Operand kinds other than event inputs.
const (
	KindInput                = "input"
	KindBlockNumber          = "block_number"
	KindContractAddress      = "contract_address"
	KindContractAddressLabel = "contract_address_label"
	KindTxHash               = "tx_hash"
	KindTriggeredAt          = "triggered_at"
)

// Operand names the value a leaf compares against.
type Operand struct {
	Kind string
	// Index is the positional event argument when Kind is KindInput.
	Index int
}

func (o Operand) String() string {
	if o.Kind == KindInput {
		return KindInput + strconv.Itoa(o.Index)
	}
	return o.Kind
}

// Node is either a *Group or a *Leaf.
type Node interface {
	isNode()
}

// Group combines its children with a single rule.
type Group struct {
	Rule     Rule
	Children []Node
}

// Leaf is a single comparison.
type Leaf struct {
	Operand  Operand
	Operator Operator
	Value    string
}

func (*Group) isNode() {}
func (*Leaf) isNode()  {}

// Depth returns the nesting depth below n. A group holding only leaves has depth 0.
func Depth(n Node) int {
	g, ok := n.(*Group)
	if !ok || g == nil {
		return 0
	}
	deepest := 0
	for _, child := range g.Children {
		if cg, ok := child.(*Group); ok {
			if d := Depth(cg) + 1; d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}

// LeafCount returns the number of leaves under n.
func LeafCount(n Node) int {
	switch v := n.(type) {
	case *Leaf:
		return 1
	case *Group:
		if v == nil {
			return 0
		}
		total := 0
		for _, child := range v.Children {
			total += LeafCount(child)
		}
		return total
	default:
		return 0
	}
}

func parseRule(token string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(token))) {
	case And:
		return And, nil
	case Or:
		return Or, nil
	default:
		return "", fmt.Errorf("unsupported rule %q", token)
	}
}

// parseRuleToken splits a compound rule such as "and:or" into one rule per depth.
func parseRuleToken(token string) ([]Rule, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("empty rule")
	}
	parts := strings.Split(token, ":")
	rules := make([]Rule, 0, len(parts))
	for _, part := range parts {
		rule, err := parseRule(part)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseOperator(token string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(token)))
	switch op {
	case Equal, NotEqual, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operator %q", token)
	}
}

// ParseOperand parses "inputN" or a metadata field name.
func ParseOperand(token string) (Operand, error) {
	name := strings.ToLower(strings.TrimSpace(token))
	if name == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}
	if strings.HasPrefix(name, KindInput) {
		digits := strings.TrimPrefix(name, KindInput)
		index, err := strconv.Atoi(digits)
		if err != nil || index < 0 {
			return Operand{}, fmt.Errorf("invalid input operand %q", token)
		}
		return Operand{Kind: KindInput, Index: index}, nil
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && r != '_' {
			return Operand{}, fmt.Errorf("invalid operand %q", token)
		}
	}
	return Operand{Kind: name}, nil
}
