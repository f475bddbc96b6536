package sheet

import (
	"strings"

	"mbsheets/internal/model"
)

// Header names of the input block, compared case-insensitively.
const (
	ColEventName  = "eventName"
	ColAlias      = "alias"
	ColIndex      = "index"
	ColAggregator = "aggregator"
	ColRule       = "rule"
	ColOperand    = "operand"
	ColOperator   = "operator"
	ColValue      = "value"
)

var (
	projectionColumns = []string{ColAlias, ColIndex, ColAggregator}
	ruleColumns       = []string{ColRule, ColOperand, ColOperator, ColValue}
)

// Decoded is the typed form of a custom query input block.
type Decoded struct {
	EventSignature string
	Projections    []model.Projection
	Rules          []model.RuleGroup
}

// Decode reads a two-row block: a header row of repeating column groups and
// the row of values beneath it. Column offsets are not used past this point.
func Decode(rows [][]interface{}) (Decoded, error) {
	if len(rows) != 2 {
		return Decoded{}, model.ErrMalformed(-1, "expected a header row and a value row, got %d rows", len(rows))
	}
	header, values := rows[0], rows[1]
	if len(header) != len(values) {
		return Decoded{}, model.ErrMalformed(-1, "header has %d columns but values have %d", len(header), len(values))
	}

	names := make([]string, len(header))
	for i, cell := range header {
		name, ok := cell.(string)
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return Decoded{}, model.ErrMalformed(i, "empty header cell, the selected range may be larger than the input")
		}
		names[i] = name
	}

	if len(names) == 0 || names[0] != strings.ToLower(ColEventName) {
		return Decoded{}, model.ErrMalformed(0, "first column must be %s", ColEventName)
	}
	event, err := requiredString(values, 0, ColEventName)
	if err != nil {
		return Decoded{}, err
	}

	out := Decoded{EventSignature: event}
	aliases := make(map[string]struct{})
	col := 1
	for col < len(names) && names[col] == ColAlias {
		if !groupAt(names, col, projectionColumns) {
			return Decoded{}, model.ErrMalformed(col, "incomplete projection group, expected %s", strings.Join(projectionColumns, ","))
		}
		p, err := decodeProjection(values, col)
		if err != nil {
			return Decoded{}, err
		}
		if _, dup := aliases[p.Alias]; dup {
			return Decoded{}, model.ErrMalformed(col, "duplicate alias %q", p.Alias)
		}
		aliases[p.Alias] = struct{}{}
		out.Projections = append(out.Projections, p)
		col += len(projectionColumns)
	}
	if len(out.Projections) == 0 {
		return Decoded{}, model.ErrMalformed(1, "at least one %s group is required", strings.Join(projectionColumns, ","))
	}

	for col < len(names) {
		if names[col] == ColAlias {
			return Decoded{}, model.ErrMalformed(col, "projection groups must precede rule groups")
		}
		if !groupAt(names, col, ruleColumns) {
			return Decoded{}, model.ErrMalformed(col, "unexpected column %q, expected %s", names[col], strings.Join(ruleColumns, ","))
		}
		rg, err := decodeRuleGroup(values, col)
		if err != nil {
			return Decoded{}, err
		}
		out.Rules = append(out.Rules, rg)
		col += len(ruleColumns)
	}

	return out, nil
}

func groupAt(names []string, col int, group []string) bool {
	if col+len(group) > len(names) {
		return false
	}
	for i, want := range group {
		if names[col+i] != want {
			return false
		}
	}
	return true
}

func decodeProjection(values []interface{}, col int) (model.Projection, error) {
	alias, err := requiredString(values, col, ColAlias)
	if err != nil {
		return model.Projection{}, err
	}
	index, err := IntCell(values[col+1], -1)
	if err != nil || index < 0 {
		return model.Projection{}, model.ErrMalformed(col+1, "index must be a non-negative integer, got %v", values[col+1])
	}
	aggregator := ""
	switch v := values[col+2].(type) {
	case nil:
	case string:
		aggregator = strings.ToLower(strings.TrimSpace(v))
	default:
		return model.Projection{}, model.ErrMalformed(col+2, "aggregator must be text, got %T", v)
	}
	return model.Projection{Alias: alias, ArgIndex: index, Aggregator: aggregator}, nil
}

func decodeRuleGroup(values []interface{}, col int) (model.RuleGroup, error) {
	rule, err := requiredString(values, col, ColRule)
	if err != nil {
		return model.RuleGroup{}, err
	}
	operand, err := requiredString(values, col+1, ColOperand)
	if err != nil {
		return model.RuleGroup{}, err
	}
	operator, err := requiredString(values, col+2, ColOperator)
	if err != nil {
		return model.RuleGroup{}, err
	}
	value := values[col+3]
	if s, ok := value.(string); value == nil || (ok && strings.TrimSpace(s) == "") {
		return model.RuleGroup{}, model.ErrMalformed(col+3, "missing %s", ColValue)
	}
	return model.RuleGroup{Rule: rule, Operand: operand, Operator: operator, Value: value}, nil
}

func requiredString(values []interface{}, col int, name string) (string, error) {
	s, ok := values[col].(string)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", model.ErrMalformed(col, "missing %s", name)
	}
	return s, nil
}
