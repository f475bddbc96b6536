package eventabi

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const transferABI = `[{"anonymous":false,"inputs":[` +
	`{"indexed":true,"name":"from","type":"address"},` +
	`{"indexed":true,"name":"to","type":"address"},` +
	`{"indexed":false,"name":"value","type":"uint256"}],` +
	`"name":"Transfer","type":"event"}]`

func TestDecodeLog(t *testing.T) {
	event, err := ParseSignature("Transfer(address indexed from,address indexed to,uint256 value)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	from := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1500))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	values, err := DecodeLog(event, types.Log{
		Topics: []common.Hash{event.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:   data,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("values mismatch: %d", len(values))
	}
	if values[0].(common.Address) != from || values[1].(common.Address) != to {
		t.Fatalf("address mismatch: %v %v", values[0], values[1])
	}
	if values[2].(*big.Int).Int64() != 1500 {
		t.Fatalf("value mismatch: %v", values[2])
	}
}

func TestDecodeLogWrongTopic(t *testing.T) {
	event, err := ParseSignature("LogDeposited(address,uint256)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = DecodeLog(event, types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	if err == nil {
		t.Fatalf("expected topic error")
	}
	_, err = DecodeLog(event, types.Log{Topics: []common.Hash{event.ID, common.HexToHash("0x01")}})
	if err == nil {
		t.Fatalf("expected indexed count error")
	}
}

func TestRegistryPrefersABIFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(transferABI), 0o644); err != nil {
		t.Fatalf("write abi: %v", err)
	}

	reg := NewRegistry()
	n, err := reg.LoadFiles([]string{path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d events", n)
	}

	event, err := reg.Resolve(context.Background(), "Transfer(address,address,uint256)")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !event.Inputs[0].Indexed || event.Inputs[2].Name != "value" {
		t.Fatalf("expected abi event, got %+v", event.Inputs)
	}

	parsed, err := reg.Resolve(context.Background(), "LogDeposited(address,uint256)")
	if err != nil {
		t.Fatalf("resolve parsed: %v", err)
	}
	if parsed.Inputs[0].Indexed {
		t.Fatalf("parsed events carry no indexed flags")
	}
}

func TestRegistryLoadMissingFile(t *testing.T) {
	if _, err := NewRegistry().LoadFiles([]string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCellValue(t *testing.T) {
	wei, _ := new(big.Int).SetString("1000000000000000000000000000", 10)
	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{in: common.HexToAddress("0x89D048BE68575F2B56A999BA24FAACABD1B919FB"), want: "0x89d048be68575f2b56a999ba24faacabd1b919fb"},
		{in: wei, want: json.Number("1000000000000000000000000000")},
		{in: uint8(7), want: json.Number("7")},
		{in: int64(-3), want: json.Number("-3")},
		{in: true, want: true},
		{in: "label", want: "label"},
		{in: []byte{0xde, 0xad}, want: "0xdead"},
		{in: [4]byte{0xca, 0xfe, 0xba, 0xbe}, want: "0xcafebabe"},
		{in: nil, want: ""},
	}
	for _, tc := range cases {
		if got := CellValue(tc.in); got != tc.want {
			t.Fatalf("cell mismatch for %v: %v != %v", tc.in, got, tc.want)
		}
	}
}
