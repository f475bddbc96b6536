package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbsheets/internal/model"
)

func TestJSONLSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "history.jsonl")
	sink := NewJSONLSink(path)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, fn := range []string{"MBCUSTOMQUERY", "MBQUERY", "MBEVENTS"} {
		run := model.QueryRun{
			Function:  fn,
			Limit:     10,
			RowCount:  i,
			Grid:      model.Grid{{"sender"}, {"0x01"}},
			StartedAt: started.Add(time.Duration(i) * time.Minute),
		}
		if fn == "MBEVENTS" {
			run.Address = "privatefaucet"
		}
		require.NoError(t, sink.PutRun(ctx, run))
	}

	runs, err := sink.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].RowCount)
	assert.Equal(t, "privatefaucet", runs[0].Address)
	assert.Equal(t, "MBQUERY", runs[1].Function)
	assert.True(t, runs[1].StartedAt.Equal(started.Add(time.Minute)))
}

func TestJSONLSinkMissingFile(t *testing.T) {
	runs, err := NewJSONLSink(filepath.Join(t.TempDir(), "none.jsonl")).RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

type failingSink struct{ err error }

func (f failingSink) PutRun(context.Context, model.QueryRun) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	sink := NewJSONLSink(path)

	err := Multi{failingSink{err: boom}, sink}.PutRun(context.Background(), model.QueryRun{Function: "MBQUERY"})
	require.ErrorIs(t, err, boom)

	runs, err := sink.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "later sinks still receive the run")
}
