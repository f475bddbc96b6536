package sheet

import (
	"errors"
	"reflect"
	"testing"

	"mbsheets/internal/model"
)

func depositBlock() [][]interface{} {
	return [][]interface{}{
		{"eventName", "alias", "index", "aggregator", "alias", "index", "aggregator",
			"rule", "operand", "operator", "value",
			"rule", "operand", "operator", "value"},
		{"LogDeposited(address,uint256)", "sender", float64(0), "", "amount", float64(1), nil,
			"and", "input0", "equal", "0x89d048be68575f2b56a999ba24faacabd1b919fb",
			"and:and", "block_number", "greaterthan", float64(1)},
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode(depositBlock())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := Decoded{
		EventSignature: "LogDeposited(address,uint256)",
		Projections: []model.Projection{
			{Alias: "sender", ArgIndex: 0},
			{Alias: "amount", ArgIndex: 1},
		},
		Rules: []model.RuleGroup{
			{Rule: "and", Operand: "input0", Operator: "equal", Value: "0x89d048be68575f2b56a999ba24faacabd1b919fb"},
			{Rule: "and:and", Operand: "block_number", Operator: "greaterthan", Value: float64(1)},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decoded mismatch: %+v", got)
	}
}

func TestDecodeHeaderCaseAndAggregator(t *testing.T) {
	got, err := Decode([][]interface{}{
		{" EventName ", "Alias", "INDEX", "Aggregator"},
		{"LogDeposited(address,uint256)", "total", "1", "Sum"},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rules) != 0 {
		t.Fatalf("expected no rules, got %d", len(got.Rules))
	}
	if got.Projections[0] != (model.Projection{Alias: "total", ArgIndex: 1, Aggregator: "sum"}) {
		t.Fatalf("projection mismatch: %+v", got.Projections[0])
	}
}

func TestDecodeMalformed(t *testing.T) {
	base := depositBlock()

	cases := []struct {
		name   string
		rows   [][]interface{}
		column int
	}{
		{name: "single row", rows: base[:1], column: -1},
		{name: "length mismatch", rows: [][]interface{}{base[0], base[1][:14]}, column: -1},
		{
			name: "over-selected range",
			rows: [][]interface{}{
				append(append([]interface{}{}, base[0]...), nil),
				append(append([]interface{}{}, base[1]...), nil),
			},
			column: 15,
		},
		{
			name:   "missing eventName",
			rows:   [][]interface{}{{"alias", "index", "aggregator"}, {"sender", 0, ""}},
			column: 0,
		},
		{
			name:   "empty event",
			rows:   [][]interface{}{{"eventName", "alias", "index", "aggregator"}, {"", "sender", 0, ""}},
			column: 0,
		},
		{
			name:   "no projection",
			rows:   [][]interface{}{{"eventName"}, {"LogDeposited(address,uint256)"}},
			column: 1,
		},
		{
			name:   "truncated projection",
			rows:   [][]interface{}{{"eventName", "alias", "index"}, {"Log()", "sender", 0}},
			column: 1,
		},
		{
			name:   "bad index",
			rows:   [][]interface{}{{"eventName", "alias", "index", "aggregator"}, {"Log()", "sender", "first", ""}},
			column: 2,
		},
		{
			name:   "negative index",
			rows:   [][]interface{}{{"eventName", "alias", "index", "aggregator"}, {"Log()", "sender", -1, ""}},
			column: 2,
		},
		{
			name: "duplicate alias",
			rows: [][]interface{}{
				{"eventName", "alias", "index", "aggregator", "alias", "index", "aggregator"},
				{"Log()", "sender", 0, "", "sender", 1, ""},
			},
			column: 4,
		},
		{
			name: "projection after rule",
			rows: [][]interface{}{
				{"eventName", "alias", "index", "aggregator", "rule", "operand", "operator", "value", "alias", "index", "aggregator"},
				{"Log()", "sender", 0, "", "and", "input0", "equal", "1", "amount", 1, ""},
			},
			column: 8,
		},
		{
			name: "truncated rule",
			rows: [][]interface{}{
				{"eventName", "alias", "index", "aggregator", "rule", "operand"},
				{"Log()", "sender", 0, "", "and", "input0"},
			},
			column: 4,
		},
		{
			name: "missing value",
			rows: [][]interface{}{
				{"eventName", "alias", "index", "aggregator", "rule", "operand", "operator", "value"},
				{"Log()", "sender", 0, "", "and", "input0", "equal", nil},
			},
			column: 7,
		},
		{
			name: "missing operator",
			rows: [][]interface{}{
				{"eventName", "alias", "index", "aggregator", "rule", "operand", "operator", "value"},
				{"Log()", "sender", 0, "", "and", "input0", "", "1"},
			},
			column: 6,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.rows)
			var malformed *model.MalformedSpecError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedSpecError, got %v", err)
			}
			if malformed.Column != tc.column {
				t.Fatalf("column mismatch: %d != %d (%v)", malformed.Column, tc.column, err)
			}
		})
	}
}

func TestDecodeTemplateRoundTrip(t *testing.T) {
	header, err := Template(2, 2)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	values := []interface{}{"LogDeposited(address,uint256)", "sender", 0, "", "amount", 1, "",
		"and", "input0", "equal", "0x01", "or", "input1", "greaterthan", 5}

	if _, err := Decode([][]interface{}{header[0], values}); err != nil {
		t.Fatalf("decode template: %v", err)
	}
}
