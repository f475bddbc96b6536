package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"mbsheets/internal/eventabi"
	"mbsheets/internal/filter"
	"mbsheets/internal/grid"
	"mbsheets/internal/model"
)

type depositBackend struct {
	rows []model.ResultRow
	last Spec
}

func (d *depositBackend) FetchEvents(_ context.Context, page Spec) ([]model.ResultRow, error) {
	d.last = page
	if page.Offset >= len(d.rows) {
		return nil, nil
	}
	end := page.Offset + page.Limit
	if end > len(d.rows) {
		end = len(d.rows)
	}
	return d.rows[page.Offset:end], nil
}

type memoryRecorder struct {
	runs []model.QueryRun
	err  error
}

func (m *memoryRecorder) PutRun(_ context.Context, run model.QueryRun) error {
	m.runs = append(m.runs, run)
	return m.err
}

func depositInput() [][]interface{} {
	return [][]interface{}{
		{"eventName", "alias", "index", "aggregator", "alias", "index", "aggregator",
			"rule", "operand", "operator", "value", "rule", "operand", "operator", "value"},
		{"LogDeposited(address,uint256)", "sender", 0, "", "amount", 1, "",
			"and", "input0", "equal", "0x89D048BE68575F2B56A999BA24FAACABD1B919FB",
			"and:and", "block_number", "greaterthan", 1},
	}
}

func depositRows(n int) []model.ResultRow {
	rows := make([]model.ResultRow, n)
	for i := range rows {
		rows[i] = model.ResultRow{
			"sender": "0x89d048be68575f2b56a999ba24faacabd1b919fb",
			"amount": json.Number("1000000000000000000"),
		}
	}
	return rows
}

func TestCustomQuery(t *testing.T) {
	backend := &depositBackend{rows: depositRows(12)}
	recorder := &memoryRecorder{}
	composer := NewComposer(NewExecutor(backend), grid.NewProjector(nil),
		WithResolver(eventabi.NewRegistry()),
		WithRecorder(recorder),
	)

	out, err := composer.CustomQuery(context.Background(), depositInput(), Options{})
	if err != nil {
		t.Fatalf("custom query: %v", err)
	}
	if len(out) != DefaultLimit+1 {
		t.Fatalf("expected header plus %d rows, got %d", DefaultLimit, len(out))
	}
	if !reflect.DeepEqual(out[0], []interface{}{"sender", "amount"}) {
		t.Fatalf("header mismatch: %v", out[0])
	}
	if out[1][1] != json.Number("1000000000000000000") {
		t.Fatalf("amount mismatch: %v", out[1][1])
	}

	if backend.last.EventSignature != "LogDeposited(address,uint256)" {
		t.Fatalf("signature mismatch: %s", backend.last.EventSignature)
	}
	if filter.LeafCount(backend.last.Filter) != 2 || filter.Depth(backend.last.Filter) != 1 {
		t.Fatalf("filter shape mismatch: %+v", backend.last.Filter)
	}
	leaf := backend.last.Filter.Children[0].(*filter.Leaf)
	if leaf.Value != "0x89d048be68575f2b56a999ba24faacabd1b919fb" {
		t.Fatalf("literal not normalized: %s", leaf.Value)
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("runs mismatch: %d", len(recorder.runs))
	}
	run := recorder.runs[0]
	if run.Function != FuncCustomQuery || run.RowCount != DefaultLimit || run.Limit != DefaultLimit || run.Error != "" {
		t.Fatalf("run mismatch: %+v", run)
	}
	if len(run.Filter) == 0 {
		t.Fatalf("run should carry the wire filter")
	}
}

func TestCustomQueryLimitCells(t *testing.T) {
	backend := &depositBackend{rows: depositRows(40)}
	composer := NewComposer(NewExecutor(backend), nil)

	out, err := composer.CustomQuery(context.Background(), depositInput(), Options{Limit: float64(-1), Offset: ""})
	if err != nil {
		t.Fatalf("custom query: %v", err)
	}
	if len(out) != 41 {
		t.Fatalf("expected 40 rows plus header, got %d", len(out))
	}

	out, err = composer.CustomQuery(context.Background(), depositInput(), Options{Limit: 3, Offset: 100000})
	if err != nil {
		t.Fatalf("custom query: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty grid, got %v", out)
	}

	_, err = composer.CustomQuery(context.Background(), depositInput(), Options{Limit: "many"})
	var malformed *model.MalformedSpecError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSpecError, got %v", err)
	}
}

func TestCustomQueryProjectionOutOfRange(t *testing.T) {
	input := depositInput()
	input[1][5] = 4
	composer := NewComposer(NewExecutor(&depositBackend{}), nil, WithResolver(eventabi.NewRegistry()))

	_, err := composer.CustomQuery(context.Background(), input, Options{})
	var malformed *model.MalformedSpecError
	if !errors.As(err, &malformed) || malformed.Column != 5 {
		t.Fatalf("expected MalformedSpecError on column 5, got %v", err)
	}
}

func TestCustomQueryConflict(t *testing.T) {
	input := depositInput()
	input[1][11] = "or"
	recorder := &memoryRecorder{err: errors.New("disk full")}
	composer := NewComposer(NewExecutor(&depositBackend{}), nil, WithRecorder(recorder))

	_, err := composer.CustomQuery(context.Background(), input, Options{})
	var conflict *model.ConflictingRuleError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictingRuleError, got %v", err)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].Error == "" {
		t.Fatalf("failed run should be recorded: %+v", recorder.runs)
	}
}

func TestSavedQuery(t *testing.T) {
	backend := newFakeBackend(0)
	backend.rows = []model.ResultRow{
		{"receiver": "0x01", "amount": json.Number("5")},
		{"receiver": "0x02", "amount": json.Number("6")},
	}
	composer := NewComposer(NewExecutor(backend), nil)

	out, err := composer.SavedQuery(context.Background(), "deposits", nil, nil)
	if err != nil {
		t.Fatalf("saved query: %v", err)
	}
	want := model.Grid{
		{"amount", "receiver"},
		{json.Number("5"), "0x01"},
		{json.Number("6"), "0x02"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("grid mismatch: %v", out)
	}

	_, err = composer.SavedQuery(context.Background(), "missing", nil, nil)
	var rejected *model.QueryRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected QueryRejectedError, got %v", err)
	}
}

func TestComposerTemplate(t *testing.T) {
	out, err := NewComposer(NewExecutor(&depositBackend{}), nil).Template(1, 0)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if !reflect.DeepEqual(out, model.Grid{{"eventName", "alias", "index", "aggregator"}}) {
		t.Fatalf("template mismatch: %v", out)
	}
}

func faucetEvents(n int) []model.ResultRow {
	rows := make([]model.ResultRow, n)
	for i := range rows {
		rows[i] = model.ResultRow{
			ColTriggeredAt:        time.Date(2020, 12, 25, 5, 12, 37, 0, time.UTC).Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			ColEventName:          "LogSent",
			ColEventDef:           "LogSent(address receiver,uint256 amount)",
			"eventInput0":         fmt.Sprintf("0x%040x", i+1),
			"eventInput1":         json.Number("1000000000000000000"),
			ColEventContractLabel: "multibaasfaucet",
			ColTxBlockNumber:      json.Number(fmt.Sprint(687 - i)),
			ColFnName:             "send",
			"methodInput0":        fmt.Sprintf("0x%040x", i+1),
		}
	}
	return rows
}

func TestEvents(t *testing.T) {
	cases := []struct {
		name   string
		limit  interface{}
		offset interface{}
		rows   int
		first  string
	}{
		{name: "defaults", rows: 10, first: "2020-12-25 05:12:37"},
		{name: "limit 1", limit: 1, rows: 1, first: "2020-12-25 05:12:37"},
		{name: "limit 39 offset 1", limit: 39, offset: 1, rows: 39, first: "2020-12-25 04:12:37"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend(0)
			backend.rows = faucetEvents(40)
			recorder := &memoryRecorder{}
			composer := NewComposer(NewExecutor(backend), nil, WithRecorder(recorder))

			out, err := composer.Events(context.Background(), "privatefaucet", tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("events: %v", err)
			}
			if len(out) != tc.rows+1 {
				t.Fatalf("row count mismatch: %d", len(out)-1)
			}
			wantHeader := []interface{}{
				"triggeredAt", "eventName", "eventDef", "eventInput0", "eventInput1",
				"eventIndexInLog", "eventContractAddressLabel", "eventContractAddress", "eventContractName",
				"txFrom", "txData", "txHash", "txIndexInBlock", "txBlockHash", "txBlockNumber",
				"txContractAddressLabel", "txContractAddress", "txContractName",
				"fnName", "fnDef", "methodInput0",
			}
			if !reflect.DeepEqual(out[0], wantHeader) {
				t.Fatalf("header mismatch: %v", out[0])
			}
			if out[1][0] != tc.first {
				t.Fatalf("first triggeredAt mismatch: %v", out[1][0])
			}
			if len(recorder.runs) != 1 || recorder.runs[0].Function != FuncEvents || recorder.runs[0].Address != "privatefaucet" {
				t.Fatalf("run not recorded: %+v", recorder.runs)
			}
		})
	}
}

func TestEventsErrors(t *testing.T) {
	composer := NewComposer(NewExecutor(newFakeBackend(0)), nil)

	_, err := composer.Events(context.Background(), " ", nil, nil)
	var malformed *model.MalformedSpecError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSpecError, got %v", err)
	}

	_, err = composer.Events(context.Background(), "unknown", nil, nil)
	var rejected *model.QueryRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected QueryRejectedError, got %v", err)
	}
}

func TestEventColumnsKeepsUnknownKeys(t *testing.T) {
	got := EventColumns([]model.ResultRow{
		{"eventInput2": "c", "zeta": 1, "alpha": 2, "txHash": "0x01"},
	})
	want := []string{
		"triggeredAt", "eventName", "eventDef", "eventInput0", "eventInput1", "eventInput2",
		"eventIndexInLog", "eventContractAddressLabel", "eventContractAddress", "eventContractName",
		"txFrom", "txData", "txHash", "txIndexInBlock", "txBlockHash", "txBlockNumber",
		"txContractAddressLabel", "txContractAddress", "txContractName",
		"fnName", "fnDef", "alpha", "zeta",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("columns mismatch: %v", got)
	}
}
