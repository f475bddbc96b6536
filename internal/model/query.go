package model

import (
	"encoding/json"
	"time"
)

// Projection binds an event argument to an output column.
type Projection struct {
	Alias      string `json:"alias"`
	ArgIndex   int    `json:"arg_index"`
	Aggregator string `json:"aggregator,omitempty"`
}

// RuleGroup is one filter group as laid out in the input sheet.
type RuleGroup struct {
	Rule     string      `json:"rule"`
	Operand  string      `json:"operand"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ResultRow maps an alias to the value returned for one matched event.
type ResultRow map[string]interface{}

// Grid is the rectangular output handed back to the spreadsheet.
// Row 0 is the header when the grid is not empty.
type Grid [][]interface{}

// QueryRun records a single function invocation.
type QueryRun struct {
	Function       string          `json:"function"`
	EventSignature string          `json:"event_signature,omitempty"`
	SavedQuery     string          `json:"saved_query,omitempty"`
	Address        string          `json:"address,omitempty"`
	Filter         json.RawMessage `json:"filter,omitempty"`
	Limit          int             `json:"limit"`
	Offset         int             `json:"offset"`
	RowCount       int             `json:"row_count"`
	Grid           Grid            `json:"grid"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	DurationMS     int64           `json:"duration_ms"`
}
