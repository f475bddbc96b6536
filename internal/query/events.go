package query

import (
	"sort"
	"strconv"
	"strings"

	"mbsheets/internal/model"
)

// Columns of an address event listing, in output order. Event and method
// arguments expand into EventInputPrefix+N and MethodInputPrefix+N columns.
const (
	ColTriggeredAt          = "triggeredAt"
	ColEventName            = "eventName"
	ColEventDef             = "eventDef"
	EventInputPrefix        = "eventInput"
	ColEventIndexInLog      = "eventIndexInLog"
	ColEventContractLabel   = "eventContractAddressLabel"
	ColEventContractAddress = "eventContractAddress"
	ColEventContractName    = "eventContractName"
	ColTxFrom               = "txFrom"
	ColTxData               = "txData"
	ColTxHash               = "txHash"
	ColTxIndexInBlock       = "txIndexInBlock"
	ColTxBlockHash          = "txBlockHash"
	ColTxBlockNumber        = "txBlockNumber"
	ColTxContractLabel      = "txContractAddressLabel"
	ColTxContractAddress    = "txContractAddress"
	ColTxContractName       = "txContractName"
	ColFnName               = "fnName"
	ColFnDef                = "fnDef"
	MethodInputPrefix       = "methodInput"
)

var eventLayout = []string{
	ColTriggeredAt, ColEventName, ColEventDef, EventInputPrefix,
	ColEventIndexInLog, ColEventContractLabel, ColEventContractAddress, ColEventContractName,
	ColTxFrom, ColTxData, ColTxHash, ColTxIndexInBlock, ColTxBlockHash, ColTxBlockNumber,
	ColTxContractLabel, ColTxContractAddress, ColTxContractName,
	ColFnName, ColFnDef, MethodInputPrefix,
}

// EventColumns returns the header for rows. Input columns are widened to the
// largest argument count seen; keys outside the layout are appended sorted.
func EventColumns(rows []model.ResultRow) []string {
	inputs := map[string]int{EventInputPrefix: 0, MethodInputPrefix: 0}
	known := make(map[string]bool, len(eventLayout))
	for _, col := range eventLayout {
		known[col] = true
	}

	extra := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			if known[key] {
				continue
			}
			if prefix, n, ok := inputColumn(key); ok {
				if n+1 > inputs[prefix] {
					inputs[prefix] = n + 1
				}
				continue
			}
			extra[key] = struct{}{}
		}
	}

	columns := make([]string, 0, len(eventLayout)+len(extra))
	for _, col := range eventLayout {
		count, expands := inputs[col]
		if !expands {
			columns = append(columns, col)
			continue
		}
		for i := 0; i < count; i++ {
			columns = append(columns, col+strconv.Itoa(i))
		}
	}

	rest := make([]string, 0, len(extra))
	for key := range extra {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func inputColumn(key string) (string, int, bool) {
	for _, prefix := range []string{EventInputPrefix, MethodInputPrefix} {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		n, err := strconv.Atoi(key[len(prefix):])
		if err != nil || n < 0 {
			return "", 0, false
		}
		return prefix, n, true
	}
	return "", 0, false
}
