package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mbsheets/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_runs (
	id BIGSERIAL PRIMARY KEY,
	function TEXT NOT NULL,
	event_signature TEXT NOT NULL DEFAULT '',
	saved_query TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	filter JSONB,
	query_limit INTEGER NOT NULL,
	query_offset INTEGER NOT NULL,
	row_count INTEGER NOT NULL,
	grid JSONB NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE query_runs ADD COLUMN IF NOT EXISTS address TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS query_runs_started_at_idx ON query_runs (started_at DESC);
`

// Store persists query runs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool for dsn.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the query_runs table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutRun inserts a single run.
func (s *Store) PutRun(ctx context.Context, run model.QueryRun) error {
	return s.PutRuns(ctx, []model.QueryRun{run})
}

// PutRuns inserts runs in one batch.
func (s *Store) PutRuns(ctx context.Context, runs []model.QueryRun) error {
	if len(runs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, run := range runs {
		grid := run.Grid
		if grid == nil {
			grid = model.Grid{}
		}
		gridJSON, err := json.Marshal(grid)
		if err != nil {
			return fmt.Errorf("marshal grid: %w", err)
		}
		var filterJSON []byte
		if len(run.Filter) > 0 {
			filterJSON = run.Filter
		}
		batch.Queue(`
			INSERT INTO query_runs (
				function, event_signature, saved_query, address, filter, query_limit, query_offset,
				row_count, grid, error, started_at, duration_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			run.Function,
			run.EventSignature,
			run.SavedQuery,
			run.Address,
			filterJSON,
			run.Limit,
			run.Offset,
			run.RowCount,
			gridJSON,
			run.Error,
			run.StartedAt,
			run.DurationMS,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range runs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert query run: %w", err)
		}
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]model.QueryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT function, event_signature, saved_query, address, filter, query_limit, query_offset,
			row_count, grid, error, started_at, duration_ms
		FROM query_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.QueryRun, 0, limit)
	for rows.Next() {
		var (
			run        model.QueryRun
			filterJSON []byte
			gridJSON   []byte
		)
		if err := rows.Scan(
			&run.Function,
			&run.EventSignature,
			&run.SavedQuery,
			&run.Address,
			&filterJSON,
			&run.Limit,
			&run.Offset,
			&run.RowCount,
			&gridJSON,
			&run.Error,
			&run.StartedAt,
			&run.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan query run: %w", err)
		}
		if len(filterJSON) > 0 {
			run.Filter = json.RawMessage(filterJSON)
		}
		dec := json.NewDecoder(bytes.NewReader(gridJSON))
		dec.UseNumber()
		if err := dec.Decode(&run.Grid); err != nil {
			return nil, fmt.Errorf("decode grid: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
