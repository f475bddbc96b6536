package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbsheets/internal/model"
)

// Runs against a real database when MBSHEETS_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("MBSHEETS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MBSHEETS_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := model.QueryRun{
		Function:       "MBCUSTOMQUERY",
		EventSignature: "LogDeposited(address,uint256)",
		Filter:         json.RawMessage(`{"rule":"And","children":[]}`),
		Limit:          10,
		RowCount:       1,
		Grid:           model.Grid{{"amount"}, {json.Number("1000000000000000000")}},
		StartedAt:      started,
		DurationMS:     12,
	}
	require.NoError(t, store.PutRun(ctx, run))

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.EventSignature, runs[0].EventSignature)
	assert.Equal(t, json.Number("1000000000000000000"), runs[0].Grid[1][0])
	assert.True(t, runs[0].StartedAt.Equal(started))
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}
