//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/testhelpers"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	matchDB := testhelpers.GetMatchDB(t)
	return NewExecutor(matchDB.DB.Pool, time.Second, zap.NewNop())
}

func TestQuery_WinRateOnHaven(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Query(context.Background(),
		"SELECT map, win_rate FROM v_team_map_stats WHERE team_name = $1 AND map = $2",
		[]any{testhelpers.TeamCloud9, "Haven"}, analytics.QueryOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, "Haven", result.Rows[0]["map"])
	assert.InDelta(t, 58.0, result.Rows[0]["win_rate"], 0.001, "NUMERIC is returned as float64")
}

func TestQuery_Truncates(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Query(context.Background(),
		"SELECT g AS n FROM generate_series(1, 10000) AS g", nil, analytics.QueryOptions{})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 500, result.RowCount)
	require.NotNil(t, result.TotalRows)
	assert.Equal(t, int64(10000), *result.TotalRows)
}

func TestQuery_ReadOnlyTransaction(t *testing.T) {
	exec := newTestExecutor(t)

	_, err := exec.Query(context.Background(),
		"WITH d AS (DELETE FROM series RETURNING series_id) SELECT series_id FROM d", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExecutionFailed, apperrors.KindOf(err))

	var count int
	require.NoError(t, testhelpers.GetMatchDB(t).DB.QueryRow(context.Background(), "SELECT COUNT(*) FROM series").Scan(&count))
	assert.Equal(t, 6, count)
}

func TestQuery_StatementTimeout(t *testing.T) {
	exec := newTestExecutor(t)

	_, err := exec.Query(context.Background(), "SELECT pg_sleep(2) AS slept", nil,
		analytics.QueryOptions{StatementTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindQueryTimeout, apperrors.KindOf(err))
}

func TestQuery_ErrorIsSanitized(t *testing.T) {
	exec := newTestExecutor(t)

	_, err := exec.Query(context.Background(), "SELECT * FROM secret_internal_table", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExecutionFailed, apperrors.KindOf(err))
	assert.NotContains(t, apperrors.UserMessage(err), "secret_internal_table")
}

func TestPing(t *testing.T) {
	exec := newTestExecutor(t)
	assert.NoError(t, exec.Ping(context.Background()))
	assert.Equal(t, "postgres", exec.Backend())
}
