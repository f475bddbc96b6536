package filter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FormatLiteral renders a sheet cell as the string form used on the wire.
// Floats are written without exponent so 1e27 becomes "1000000000000000000000000000".
func FormatLiteral(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("missing value")
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case *big.Int:
		if v == nil {
			return "", fmt.Errorf("missing value")
		}
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

// ParseInteger parses decimal, 0x-prefixed hex, or integral scientific notation.
func ParseInteger(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty integer")
	}
	if n, ok := new(big.Int).SetString(raw, 0); ok {
		return n, nil
	}
	f, ok := new(big.Float).SetPrec(512).SetString(raw)
	if !ok || !f.IsInt() {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	n, _ := f.Int(nil)
	return n, nil
}

// NormalizeLiteral converts a literal into the canonical form for an ABI type.
func NormalizeLiteral(typ abi.Type, raw string) (string, error) {
	switch typ.T {
	case abi.AddressTy:
		return normalizeAddress(raw)
	case abi.IntTy, abi.UintTy:
		n, err := ParseInteger(raw)
		if err != nil {
			return "", err
		}
		if typ.T == abi.UintTy && n.Sign() < 0 {
			return "", fmt.Errorf("negative value %s for %s", n, typ.String())
		}
		return n.String(), nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return "", fmt.Errorf("invalid bool %q", raw)
		}
		return strconv.FormatBool(b), nil
	case abi.StringTy:
		return raw, nil
	case abi.BytesTy, abi.FixedBytesTy, abi.HashTy:
		data, err := hexutil.Decode(strings.TrimSpace(raw))
		if err != nil {
			return "", fmt.Errorf("invalid bytes %q: %w", raw, err)
		}
		if typ.T == abi.FixedBytesTy {
			if len(data) > typ.Size {
				return "", fmt.Errorf("value longer than %s", typ.String())
			}
			// bytesN values are left-aligned
			padded := make([]byte, typ.Size)
			copy(padded, data)
			data = padded
		}
		return hexutil.Encode(data), nil
	default:
		return "", fmt.Errorf("comparison on %s is not supported", typ.String())
	}
}

func normalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("invalid address %q", raw)
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), nil
}
