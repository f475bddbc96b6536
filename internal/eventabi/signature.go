package eventabi

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseSignature builds an event from a signature such as
// "LogDeposited(address,uint256)" or "Transfer(address indexed from,address indexed to,uint256 value)".
// Unnamed arguments are called input0, input1, ...
func ParseSignature(sig string) (abi.Event, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return abi.Event{}, fmt.Errorf("invalid event signature %q", sig)
	}
	name := strings.TrimSpace(sig[:open])
	if !isIdentifier(name) {
		return abi.Event{}, fmt.Errorf("invalid event name %q", name)
	}

	params, err := splitParams(sig[open+1 : len(sig)-1])
	if err != nil {
		return abi.Event{}, fmt.Errorf("event signature %q: %w", sig, err)
	}

	args := make(abi.Arguments, 0, len(params))
	for i, param := range params {
		arg, err := parseParam(param, i)
		if err != nil {
			return abi.Event{}, fmt.Errorf("event signature %q: %w", sig, err)
		}
		args = append(args, arg)
	}

	return abi.NewEvent(name, name, false, args), nil
}

func parseParam(param string, index int) (abi.Argument, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return abi.Argument{}, fmt.Errorf("empty parameter %d", index)
	}
	if strings.HasPrefix(fields[0], "(") || strings.HasPrefix(fields[0], "tuple") {
		return abi.Argument{}, fmt.Errorf("tuple parameter %d is not supported", index)
	}

	typ, err := abi.NewType(fields[0], "", nil)
	if err != nil {
		return abi.Argument{}, fmt.Errorf("parameter %d: %w", index, err)
	}

	arg := abi.Argument{Type: typ}
	rest := fields[1:]
	if len(rest) > 0 && rest[0] == "indexed" {
		arg.Indexed = true
		rest = rest[1:]
	}
	switch len(rest) {
	case 0:
		arg.Name = fmt.Sprintf("input%d", index)
	case 1:
		arg.Name = rest[0]
	default:
		return abi.Argument{}, fmt.Errorf("parameter %d: unexpected %q", index, strings.Join(rest, " "))
	}
	return arg, nil
}

func splitParams(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	var params []string
	depth, start := 0, 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	return append(params, strings.TrimSpace(body[start:])), nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
