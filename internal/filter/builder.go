package filter

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"mbsheets/internal/model"
)

// Option configures Build.
type Option func(*builder)

// WithEvent enables argument range checks and typed literal normalization.
func WithEvent(event abi.Event) Option {
	return func(b *builder) {
		b.event = &event
	}
}

type builder struct {
	event *abi.Event
}

// Build folds rule groups into a filter tree. A rule such as "and:and" places
// its leaf one level below an enclosing and-group. The root is always a group;
// nil is returned when there are no rule groups.
func Build(groups []model.RuleGroup, opts ...Option) (*Group, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	var open []*Group
	for i, rg := range groups {
		rules, err := parseRuleToken(rg.Rule)
		if err != nil {
			return nil, model.ErrMalformed(-1, "filter %d: %v", i, err)
		}
		leaf, err := b.leaf(rg)
		if err != nil {
			return nil, model.ErrMalformed(-1, "filter %d: %v", i, err)
		}

		for depth, rule := range rules {
			if depth < len(open) {
				if open[depth].Rule != rule {
					return nil, &model.ConflictingRuleError{
						Row:       i,
						Depth:     depth,
						Existing:  string(open[depth].Rule),
						Requested: string(rule),
					}
				}
				continue
			}
			group := &Group{Rule: rule}
			if depth > 0 {
				parent := open[depth-1]
				parent.Children = append(parent.Children, group)
			}
			open = append(open, group)
		}

		deepest := open[len(rules)-1]
		deepest.Children = append(deepest.Children, leaf)
		// groups deeper than this row are closed
		open = open[:len(rules)]
	}

	return open[0], nil
}

func (b *builder) leaf(rg model.RuleGroup) (*Leaf, error) {
	operand, err := ParseOperand(rg.Operand)
	if err != nil {
		return nil, err
	}
	operator, err := parseOperator(rg.Operator)
	if err != nil {
		return nil, err
	}
	value, err := FormatLiteral(rg.Value)
	if err != nil {
		return nil, err
	}

	switch operand.Kind {
	case KindInput:
		if b.event != nil {
			if operand.Index >= len(b.event.Inputs) {
				return nil, fmt.Errorf("%s out of range for %s with %d inputs", operand, b.event.Sig, len(b.event.Inputs))
			}
			value, err = NormalizeLiteral(b.event.Inputs[operand.Index].Type, value)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", operand, err)
			}
		}
	case KindBlockNumber:
		n, err := ParseInteger(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", operand, err)
		}
		value = n.String()
	case KindContractAddress:
		value, err = normalizeAddress(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", operand, err)
		}
	case KindTxHash:
		value = strings.ToLower(value)
	}

	return &Leaf{Operand: operand, Operator: operator, Value: value}, nil
}
