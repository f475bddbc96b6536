package storage

import (
	"context"
	"errors"

	"mbsheets/internal/model"
)

// Sink stores records of query invocations.
type Sink interface {
	PutRun(ctx context.Context, run model.QueryRun) error
}

// History lists the most recent runs, newest first.
type History interface {
	RecentRuns(ctx context.Context, limit int) ([]model.QueryRun, error)
}

// Multi writes every run to each sink and joins their errors.
type Multi []Sink

// PutRun writes run to every sink, continuing past failures.
func (m Multi) PutRun(ctx context.Context, run model.QueryRun) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
