package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseLabels converts a label → address map. Labels are matched case-insensitively.
func ParseLabels(inputs map[string]string) (map[string]common.Address, error) {
	labels := make(map[string]common.Address, len(inputs))
	for label, addr := range inputs {
		label = strings.ToLower(strings.TrimSpace(label))
		addr = strings.TrimSpace(addr)
		if label == "" {
			return nil, fmt.Errorf("empty label for address %s", addr)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid address for label %s: %s", label, addr)
		}
		labels[label] = common.HexToAddress(addr)
	}
	return labels, nil
}
