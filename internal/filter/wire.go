package filter

import (
	"fmt"
	"strings"
)

// WireNode is the backend's JSON shape for a filter tree.
type WireNode struct {
	Rule       string     `json:"rule,omitempty"`
	Children   []WireNode `json:"children,omitempty"`
	Operator   string     `json:"operator,omitempty"`
	Value      string     `json:"value,omitempty"`
	FieldType  string     `json:"fieldType,omitempty"`
	InputIndex *int       `json:"inputIndex,omitempty"`
}

var wireRules = map[Rule]string{
	And: "And",
	Or:  "Or",
}

var wireOperators = map[Operator]string{
	Equal:              "Equal",
	NotEqual:           "NotEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
}

// ToWire converts a tree into its wire shape. A nil group yields nil.
func ToWire(g *Group) *WireNode {
	if g == nil {
		return nil
	}
	node := toWire(g)
	return &node
}

func toWire(n Node) WireNode {
	switch v := n.(type) {
	case *Group:
		children := make([]WireNode, 0, len(v.Children))
		for _, child := range v.Children {
			children = append(children, toWire(child))
		}
		return WireNode{Rule: wireRules[v.Rule], Children: children}
	case *Leaf:
		out := WireNode{
			Operator:  wireOperators[v.Operator],
			Value:     v.Value,
			FieldType: v.Operand.Kind,
		}
		if v.Operand.Kind == KindInput {
			index := v.Operand.Index
			out.InputIndex = &index
		}
		return out
	default:
		return WireNode{}
	}
}

// FromWire converts a wire tree back into a filter tree. The root must be a group.
func FromWire(w *WireNode) (*Group, error) {
	if w == nil {
		return nil, nil
	}
	n, err := fromWire(*w)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("wire filter root must be a group")
	}
	return g, nil
}

func fromWire(w WireNode) (Node, error) {
	if w.Rule != "" {
		rule, err := parseRule(w.Rule)
		if err != nil {
			return nil, err
		}
		g := &Group{Rule: rule}
		for _, child := range w.Children {
			n, err := fromWire(child)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, n)
		}
		return g, nil
	}

	operator, err := parseOperator(w.Operator)
	if err != nil {
		return nil, err
	}
	kind := strings.ToLower(w.FieldType)
	operand := Operand{Kind: kind}
	if kind == KindInput {
		if w.InputIndex == nil {
			return nil, fmt.Errorf("input field without inputIndex")
		}
		operand.Index = *w.InputIndex
	} else if kind == "" {
		return nil, fmt.Errorf("leaf without fieldType")
	}
	return &Leaf{Operand: operand, Operator: operator, Value: w.Value}, nil
}
