package sheet

import (
	"errors"
	"reflect"
	"testing"

	"mbsheets/internal/model"
)

func TestTemplate(t *testing.T) {
	got, err := Template(2, 2)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	want := model.Grid{{
		"eventName",
		"alias", "index", "aggregator",
		"alias", "index", "aggregator",
		"rule", "operand", "operator", "value",
		"rule", "operand", "operator", "value",
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("template mismatch: %v", got)
	}
}

func TestTemplateNoFilters(t *testing.T) {
	got, err := Template(2, 0)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 7 {
		t.Fatalf("template shape mismatch: %v", got)
	}
}

func TestTemplateInvalidCounts(t *testing.T) {
	for _, counts := range [][2]int{{0, 1}, {1, -1}} {
		_, err := Template(counts[0], counts[1])
		var malformed *model.MalformedSpecError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedSpecError for %v, got %v", counts, err)
		}
	}
}

func TestIntCell(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
	}{
		{in: nil, want: 10},
		{in: "", want: 10},
		{in: " 3 ", want: 3},
		{in: float64(-1), want: -1},
		{in: 7, want: 7},
		{in: "1e2", want: 100},
	}
	for _, tc := range cases {
		got, err := IntCell(tc.in, 10)
		if err != nil {
			t.Fatalf("int cell %v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("int cell mismatch for %v: %d != %d", tc.in, got, tc.want)
		}
	}

	for _, bad := range []interface{}{"ten", float64(1.5), true} {
		if _, err := IntCell(bad, 10); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}
