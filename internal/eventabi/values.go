package eventabi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CellValue renders a decoded argument as a grid cell. Integers become
// json.Number so wei amounts keep full precision.
func CellValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return ""
	case common.Address:
		return strings.ToLower(v.Hex())
	case common.Hash:
		return v.Hex()
	case *big.Int:
		if v == nil {
			return ""
		}
		return json.Number(v.String())
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		n, err := AsBigInt(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return json.Number(n.String())
	case bool, string:
		return v
	case []byte:
		return hexutil.Encode(v)
	}
	if b, err := AsBytes(value); err == nil {
		return hexutil.Encode(b)
	}
	return fmt.Sprint(value)
}

// AsBigInt converts any ABI integer value to a big.Int.
func AsBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

// AsAddress converts an ABI address value.
func AsAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

// AsBytes converts byte slices, hashes and fixed-size byte arrays.
func AsBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		for i := range out {
			out[i] = byte(rv.Index(i).Uint())
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported bytes type %T", value)
}
