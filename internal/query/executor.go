package query

import (
	"context"

	"go.uber.org/zap"

	"mbsheets/internal/model"
)

const (
	DefaultPageSize = 100
	DefaultMaxRows  = 10000

	kindEvents  = "events"
	kindSaved   = "saved"
	kindAddress = "address"
)

// Executor pages through a backend and applies offset and limit.
type Executor struct {
	backend  Backend
	pageSize int
	maxRows  int
	metrics  *Metrics
	logger   *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPageSize sets how many rows are requested per round trip.
func WithPageSize(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxRows sets the ceiling on rows collected by one invocation.
func WithMaxRows(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

// WithMetrics records page, row and failure counts in m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger used for per-page debug logs.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor over backend with the default page size
// and row cap.
func NewExecutor(backend Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{
		backend:  backend,
		pageSize: DefaultPageSize,
		maxRows:  DefaultMaxRows,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs spec and returns rows [offset, offset+limit) of the backend's
// ordered result. A zero limit means DefaultLimit; a negative limit reads
// until the backend runs out of rows or the row ceiling is passed.
func (e *Executor) Execute(ctx context.Context, spec Spec) ([]model.ResultRow, error) {
	rows, err := e.paginate(ctx, kindEvents, spec.Limit, spec.Offset, func(ctx context.Context, limit, offset int) ([]model.ResultRow, error) {
		page := spec
		page.Limit = limit
		page.Offset = offset
		return e.backend.FetchEvents(ctx, page)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteSaved runs a query stored on the backend under name.
func (e *Executor) ExecuteSaved(ctx context.Context, name string, limit, offset int) ([]model.ResultRow, error) {
	saved, ok := e.backend.(SavedQueryBackend)
	if !ok {
		err := &model.QueryRejectedError{Message: "backend does not support saved queries"}
		e.metrics.failure(kindSaved, err)
		return nil, err
	}
	return e.paginate(ctx, kindSaved, limit, offset, func(ctx context.Context, limit, offset int) ([]model.ResultRow, error) {
		return saved.FetchSavedQuery(ctx, name, limit, offset)
	})
}

// ExecuteAddressEvents lists events emitted by the contract at address or
// label, newest first.
func (e *Executor) ExecuteAddressEvents(ctx context.Context, address string, limit, offset int) ([]model.ResultRow, error) {
	events, ok := e.backend.(AddressEventsBackend)
	if !ok {
		err := &model.QueryRejectedError{Message: "backend does not support address event listings"}
		e.metrics.failure(kindAddress, err)
		return nil, err
	}
	return e.paginate(ctx, kindAddress, limit, offset, func(ctx context.Context, limit, offset int) ([]model.ResultRow, error) {
		return events.FetchAddressEvents(ctx, address, limit, offset)
	})
}

type fetchFunc func(ctx context.Context, limit, offset int) ([]model.ResultRow, error)

func (e *Executor) paginate(ctx context.Context, kind string, limit, offset int, fetch fetchFunc) ([]model.ResultRow, error) {
	if offset < 0 {
		err := model.ErrMalformed(-1, "offset must not be negative, got %d", offset)
		e.metrics.failure(kind, err)
		return nil, err
	}
	if limit == 0 {
		limit = DefaultLimit
	}

	rows := make([]model.ResultRow, 0)
	cursor := offset
	for {
		want := e.pageSize
		if limit > 0 {
			remaining := limit - len(rows)
			if remaining <= 0 {
				break
			}
			if remaining < want {
				want = remaining
			}
		}
		// never ask for more than one row past the ceiling
		if over := e.maxRows - len(rows) + 1; over < want {
			want = over
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, want, cursor)
		if err != nil {
			e.metrics.failure(kind, err)
			e.logger.Debug("page failed", zap.String("kind", kind), zap.Int("offset", cursor), zap.Error(err))
			return nil, err
		}
		e.metrics.page(kind)
		if len(page) > want {
			page = page[:want]
		}
		e.logger.Debug("page fetched",
			zap.String("kind", kind),
			zap.Int("offset", cursor),
			zap.Int("requested", want),
			zap.Int("rows", len(page)),
		)

		rows = append(rows, page...)
		cursor += len(page)
		if len(rows) > e.maxRows {
			e.metrics.failure(kind, model.ErrResultCapExceeded)
			return nil, model.ErrResultCapExceeded
		}
		if len(page) < want {
			break
		}
	}

	e.metrics.rows(kind, len(rows))
	return rows, nil
}
