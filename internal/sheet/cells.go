package sheet

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IntCell converts a numeric cell. Empty cells yield def.
func IntCell(cell interface{}, def int) (int, error) {
	switch v := cell.(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case json.Number:
		return atoi(v.String())
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		return atoi(v)
	default:
		return 0, fmt.Errorf("not an integer: %v", cell)
	}
}

func atoi(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int(f), nil
}
