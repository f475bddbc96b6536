package filter

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"mbsheets/internal/eventabi"
)

// Record is the view of one decoded event that Match evaluates against.
type Record struct {
	Event       abi.Event
	Values      []interface{}
	BlockNumber uint64
	Address     common.Address
	TxHash      common.Hash
	// Timestamp loads the block time in unix seconds; nil when unavailable.
	Timestamp func() (uint64, error)
	// Labels maps lower-case contract labels to addresses.
	Labels map[string]common.Address
}

// Match reports whether rec satisfies the tree. A nil tree matches everything.
func Match(g *Group, rec Record) (bool, error) {
	if g == nil {
		return true, nil
	}
	return match(g, rec)
}

func match(n Node, rec Record) (bool, error) {
	switch v := n.(type) {
	case *Group:
		for _, child := range v.Children {
			ok, err := match(child, rec)
			if err != nil {
				return false, err
			}
			if v.Rule == Or && ok {
				return true, nil
			}
			if v.Rule == And && !ok {
				return false, nil
			}
		}
		return v.Rule == And, nil
	case *Leaf:
		return matchLeaf(v, rec)
	default:
		return false, fmt.Errorf("unknown filter node %T", n)
	}
}

func matchLeaf(leaf *Leaf, rec Record) (bool, error) {
	cmp, ordered, err := compareOperand(leaf, rec)
	if err != nil {
		return false, err
	}
	switch leaf.Operator {
	case Equal:
		return cmp == 0, nil
	case NotEqual:
		return cmp != 0, nil
	}
	if !ordered {
		return false, fmt.Errorf("operator %s is not supported for %s", leaf.Operator, leaf.Operand)
	}
	switch leaf.Operator {
	case LessThan:
		return cmp < 0, nil
	case LessThanOrEqual:
		return cmp <= 0, nil
	case GreaterThan:
		return cmp > 0, nil
	case GreaterThanOrEqual:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", leaf.Operator)
	}
}

// compareOperand compares the record's operand value with the leaf literal.
// ordered is false when only equality is meaningful.
func compareOperand(leaf *Leaf, rec Record) (int, bool, error) {
	switch leaf.Operand.Kind {
	case KindInput:
		idx := leaf.Operand.Index
		if idx >= len(rec.Event.Inputs) || idx >= len(rec.Values) {
			return 0, false, fmt.Errorf("%s out of range for %s", leaf.Operand, rec.Event.Sig)
		}
		return compareTyped(rec.Event.Inputs[idx].Type, rec.Values[idx], leaf.Value)
	case KindBlockNumber:
		literal, err := ParseInteger(leaf.Value)
		if err != nil {
			return 0, false, err
		}
		return new(big.Int).SetUint64(rec.BlockNumber).Cmp(literal), true, nil
	case KindContractAddress:
		literal, err := normalizeAddress(leaf.Value)
		if err != nil {
			return 0, false, err
		}
		return bytes.Compare(rec.Address.Bytes(), common.HexToAddress(literal).Bytes()), true, nil
	case KindContractAddressLabel:
		addr, ok := rec.Labels[strings.ToLower(strings.TrimSpace(leaf.Value))]
		if !ok {
			return 0, false, fmt.Errorf("unknown contract label %q", leaf.Value)
		}
		return bytes.Compare(rec.Address.Bytes(), addr.Bytes()), false, nil
	case KindTxHash:
		return strings.Compare(strings.ToLower(rec.TxHash.Hex()), strings.ToLower(strings.TrimSpace(leaf.Value))), false, nil
	case KindTriggeredAt:
		if rec.Timestamp == nil {
			return 0, false, fmt.Errorf("block timestamps are unavailable")
		}
		ts, err := rec.Timestamp()
		if err != nil {
			return 0, false, fmt.Errorf("block timestamp: %w", err)
		}
		literal, err := parseTimestamp(leaf.Value)
		if err != nil {
			return 0, false, err
		}
		return compareUint(ts, literal), true, nil
	default:
		return 0, false, fmt.Errorf("field %q is not supported", leaf.Operand.Kind)
	}
}

func compareTyped(typ abi.Type, value interface{}, raw string) (int, bool, error) {
	literal, err := NormalizeLiteral(typ, raw)
	if err != nil {
		return 0, false, err
	}
	switch typ.T {
	case abi.AddressTy:
		addr, err := eventabi.AsAddress(value)
		if err != nil {
			return 0, false, err
		}
		return bytes.Compare(addr.Bytes(), common.HexToAddress(literal).Bytes()), true, nil
	case abi.IntTy, abi.UintTy:
		n, err := eventabi.AsBigInt(value)
		if err != nil {
			return 0, false, err
		}
		want, _ := new(big.Int).SetString(literal, 10)
		return n.Cmp(want), true, nil
	case abi.BoolTy:
		b, ok := value.(bool)
		if !ok {
			return 0, false, fmt.Errorf("unsupported bool type %T", value)
		}
		if strconv.FormatBool(b) == literal {
			return 0, false, nil
		}
		return 1, false, nil
	case abi.StringTy:
		s, ok := value.(string)
		if !ok {
			// indexed strings only carry their hash
			return 0, false, fmt.Errorf("indexed string cannot be compared")
		}
		return strings.Compare(s, literal), true, nil
	default:
		b, err := eventabi.AsBytes(value)
		if err != nil {
			return 0, false, err
		}
		return strings.Compare(hexutil.Encode(b), literal), false, nil
	}
}

func parseTimestamp(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n, nil
	}
	tm, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	return uint64(tm.Unix()), nil
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
