package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap"

	"mbsheets/internal/filter"
	"mbsheets/internal/grid"
	"mbsheets/internal/model"
	"mbsheets/internal/sheet"
)

// Function names as the spreadsheet calls them.
const (
	FuncCustomQuery = "MBCUSTOMQUERY"
	FuncSavedQuery  = "MBQUERY"
	FuncEvents      = "MBEVENTS"
)

// EventResolver resolves a signature to its ABI event.
type EventResolver interface {
	Resolve(ctx context.Context, signature string) (abi.Event, error)
}

// Recorder stores a record of every invocation.
type Recorder interface {
	PutRun(ctx context.Context, run model.QueryRun) error
}

// Options carries the trailing arguments of a custom query call. Limit and
// Offset are raw cells; empty cells take the defaults.
type Options struct {
	Limit   interface{}
	Offset  interface{}
	GroupBy string
	OrderBy string
}

// Composer wires decoding, tree building, execution and projection together.
type Composer struct {
	executor  *Executor
	resolver  EventResolver
	projector *grid.Projector
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithResolver enables typed literal checks against the event ABI.
func WithResolver(r EventResolver) ComposerOption {
	return func(c *Composer) { c.resolver = r }
}

// WithRecorder records every invocation to r.
func WithRecorder(r Recorder) ComposerOption {
	return func(c *Composer) { c.recorder = r }
}

// WithComposerLogger sets the logger for invocation records.
func WithComposerLogger(logger *zap.Logger) ComposerOption {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewComposer creates a composer. A nil projector formats times with
// grid.DefaultLayout in UTC.
func NewComposer(executor *Executor, projector *grid.Projector, opts ...ComposerOption) *Composer {
	if projector == nil {
		projector = grid.NewProjector(nil)
	}
	c := &Composer{
		executor:  executor,
		projector: projector,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CustomQuery runs the query described by a header row and a value row.
func (c *Composer) CustomQuery(ctx context.Context, rows [][]interface{}, opts Options) (model.Grid, error) {
	run := model.QueryRun{Function: FuncCustomQuery, StartedAt: c.now()}

	out, err := c.customQuery(ctx, rows, opts, &run)
	c.record(ctx, &run, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Composer) customQuery(ctx context.Context, rows [][]interface{}, opts Options, run *model.QueryRun) (model.Grid, error) {
	limit, offset, err := bounds(opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	run.Limit, run.Offset = limit, offset

	decoded, err := sheet.Decode(rows)
	if err != nil {
		return nil, err
	}
	run.EventSignature = decoded.EventSignature

	var buildOpts []filter.Option
	signature := decoded.EventSignature
	if c.resolver != nil {
		event, err := c.resolver.Resolve(ctx, decoded.EventSignature)
		if err != nil {
			return nil, model.ErrMalformed(0, "event %q: %v", decoded.EventSignature, err)
		}
		for i, p := range decoded.Projections {
			if p.ArgIndex >= len(event.Inputs) {
				return nil, model.ErrMalformed(2+3*i, "index %d out of range for %s with %d inputs", p.ArgIndex, event.Sig, len(event.Inputs))
			}
		}
		buildOpts = append(buildOpts, filter.WithEvent(event))
		signature = event.Sig
		run.EventSignature = signature
	}

	tree, err := filter.Build(decoded.Rules, buildOpts...)
	if err != nil {
		return nil, err
	}
	if tree != nil {
		if raw, err := json.Marshal(filter.ToWire(tree)); err == nil {
			run.Filter = raw
		}
	}

	result, err := c.executor.Execute(ctx, Spec{
		EventSignature: signature,
		Projections:    decoded.Projections,
		Filter:         tree,
		GroupBy:        opts.GroupBy,
		OrderBy:        opts.OrderBy,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, err
	}
	return c.projector.Project(decoded.Projections, result), nil
}

// SavedQuery runs a query stored on the backend. The header is the sorted set
// of result keys.
func (c *Composer) SavedQuery(ctx context.Context, name string, limitCell, offsetCell interface{}) (model.Grid, error) {
	run := model.QueryRun{Function: FuncSavedQuery, SavedQuery: name, StartedAt: c.now()}

	out, err := func() (model.Grid, error) {
		if name == "" {
			return nil, model.ErrMalformed(0, "missing query name")
		}
		limit, offset, err := bounds(limitCell, offsetCell)
		if err != nil {
			return nil, err
		}
		run.Limit, run.Offset = limit, offset
		rows, err := c.executor.ExecuteSaved(ctx, name, limit, offset)
		if err != nil {
			return nil, err
		}
		return c.projector.Project(nil, rows), nil
	}()
	c.record(ctx, &run, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Events lists the events emitted by the contract at address, which may
// also be an address label. Rows are newest first.
func (c *Composer) Events(ctx context.Context, address string, limitCell, offsetCell interface{}) (model.Grid, error) {
	run := model.QueryRun{Function: FuncEvents, Address: address, StartedAt: c.now()}

	out, err := func() (model.Grid, error) {
		if strings.TrimSpace(address) == "" {
			return nil, model.ErrMalformed(0, "missing address or label")
		}
		limit, offset, err := bounds(limitCell, offsetCell)
		if err != nil {
			return nil, err
		}
		run.Limit, run.Offset = limit, offset
		rows, err := c.executor.ExecuteAddressEvents(ctx, strings.TrimSpace(address), limit, offset)
		if err != nil {
			return nil, err
		}
		columns := EventColumns(rows)
		projections := make([]model.Projection, len(columns))
		for i, col := range columns {
			projections[i] = model.Projection{Alias: col, ArgIndex: -1}
		}
		return c.projector.Project(projections, rows), nil
	}()
	c.record(ctx, &run, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Template returns the input header for selects projection groups and
// filters rule groups.
func (c *Composer) Template(selects, filters int) (model.Grid, error) {
	return sheet.Template(selects, filters)
}

func bounds(limitCell, offsetCell interface{}) (int, int, error) {
	limit, err := sheet.IntCell(limitCell, DefaultLimit)
	if err != nil {
		return 0, 0, model.ErrMalformed(-1, "limit: %v", err)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	offset, err := sheet.IntCell(offsetCell, 0)
	if err != nil {
		return 0, 0, model.ErrMalformed(-1, "offset: %v", err)
	}
	if offset < 0 {
		return 0, 0, model.ErrMalformed(-1, "offset must not be negative, got %d", offset)
	}
	return limit, offset, nil
}

func (c *Composer) record(ctx context.Context, run *model.QueryRun, out model.Grid, err error) {
	run.DurationMS = c.now().Sub(run.StartedAt).Milliseconds()
	if err != nil {
		run.Error = err.Error()
		c.logger.Warn("query failed",
			zap.String("function", run.Function),
			zap.String("event", run.EventSignature),
			zap.String("saved_query", run.SavedQuery),
			zap.String("address", run.Address),
			zap.Error(err),
		)
	} else {
		run.Grid = out
		if len(out) > 0 {
			run.RowCount = len(out) - 1
		}
	}

	if c.recorder == nil {
		return
	}
	// a cancelled request still gets its run recorded
	recordCtx := context.WithoutCancel(ctx)
	if rerr := c.recorder.PutRun(recordCtx, *run); rerr != nil && !errors.Is(rerr, context.Canceled) {
		c.logger.Warn("record run failed", zap.String("function", run.Function), zap.Error(rerr))
	}
}
