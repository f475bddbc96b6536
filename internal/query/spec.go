package query

import (
	"context"

	"mbsheets/internal/filter"
	"mbsheets/internal/model"
)

// DefaultLimit applies when the caller leaves the limit empty or zero.
const DefaultLimit = 10

// Spec is one custom query. Limit < 0 requests every matching row.
type Spec struct {
	EventSignature string
	Projections    []model.Projection
	Filter         *filter.Group
	GroupBy        string
	OrderBy        string
	Limit          int
	Offset         int
}

// Backend fetches one page of decoded events keyed by projection alias.
// The executor always passes a positive page.Limit.
type Backend interface {
	FetchEvents(ctx context.Context, page Spec) ([]model.ResultRow, error)
}

// SavedQueryBackend runs queries stored on the backend by name.
type SavedQueryBackend interface {
	FetchSavedQuery(ctx context.Context, name string, limit, offset int) ([]model.ResultRow, error)
}

// AddressEventsBackend lists the events of one contract, keyed by the
// columns in events.go.
type AddressEventsBackend interface {
	FetchAddressEvents(ctx context.Context, address string, limit, offset int) ([]model.ResultRow, error)
}
