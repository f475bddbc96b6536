package multibaas

import (
	"encoding/json"

	"mbsheets/internal/filter"
)

type customQueryRequest struct {
	Events  []eventQuery `json:"events"`
	GroupBy string       `json:"groupBy"`
	OrderBy string       `json:"orderBy"`
}

type eventQuery struct {
	EventName string           `json:"eventName"`
	Select    []selectField    `json:"select"`
	Filter    *filter.WireNode `json:"filter,omitempty"`
}

type selectField struct {
	Alias      string `json:"alias"`
	Type       string `json:"type"`
	InputIndex int    `json:"inputIndex"`
	Aggregator string `json:"aggregator,omitempty"`
}

// envelope is the response wrapper of every API call.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type queryResult struct {
	Rows []map[string]interface{} `json:"rows"`
}
