package filter

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestToWireShape(t *testing.T) {
	tree, err := Build(depositRules())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	raw, err := json.Marshal(ToWire(tree))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"rule":"And","children":[` +
		`{"operator":"Equal","value":"0x89d048be68575f2b56a999ba24faacabd1b919fb","fieldType":"input","inputIndex":0},` +
		`{"operator":"GreaterThan","value":"1","fieldType":"input","inputIndex":1},` +
		`{"rule":"And","children":[{"operator":"GreaterThan","value":"1","fieldType":"block_number"}]}]}`
	if string(raw) != want {
		t.Fatalf("wire mismatch:\n got %s\nwant %s", raw, want)
	}
}

func TestWireRoundTrip(t *testing.T) {
	tree, err := Build(depositRules())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	raw, err := json.Marshal(ToWire(tree))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded WireNode
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := FromWire(&decoded)
	if err != nil {
		t.Fatalf("from wire: %v", err)
	}
	if !reflect.DeepEqual(back, tree) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestToWireNil(t *testing.T) {
	if ToWire(nil) != nil {
		t.Fatalf("expected nil wire node")
	}
	g, err := FromWire(nil)
	if err != nil || g != nil {
		t.Fatalf("expected nil group, got %+v %v", g, err)
	}
}

func TestFromWireRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"leaf root":        `{"operator":"Equal","value":"1","fieldType":"block_number"}`,
		"missing index":    `{"rule":"And","children":[{"operator":"Equal","value":"1","fieldType":"input"}]}`,
		"missing field":    `{"rule":"And","children":[{"operator":"Equal","value":"1"}]}`,
		"unknown rule":     `{"rule":"Xor","children":[]}`,
		"unknown operator": `{"rule":"Or","children":[{"operator":"Like","value":"1","fieldType":"block_number"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var w WireNode
			if err := json.Unmarshal([]byte(raw), &w); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if _, err := FromWire(&w); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
