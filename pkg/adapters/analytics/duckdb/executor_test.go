package duckdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/apperrors"
)

// seed writes a match file and returns its path. The executor then reopens it read-only.
func seed(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scouting.duckdb")

	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())
	return path
}

func openReadOnly(t *testing.T, path string) *Executor {
	t.Helper()
	exec, err := Open(context.Background(), path+"?access_mode=READ_ONLY", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestQuery_ReturnsRows(t *testing.T) {
	path := seed(t,
		`CREATE TABLE v_team_map_stats (team_name VARCHAR, map VARCHAR, games INTEGER, wins INTEGER, win_rate DECIMAL(5,1), avg_round_diff DECIMAL(6,2))`,
		`INSERT INTO v_team_map_stats VALUES
			('Sentinels', 'Bind', 8, 6, 75.0, 3.25),
			('Sentinels', 'Haven', 5, 2, 40.0, -1.50),
			('Cloud9', 'Bind', 4, 1, 25.0, -4.00)`,
	)
	exec := openReadOnly(t, path)

	result, err := exec.Query(context.Background(),
		"SELECT map, win_rate FROM v_team_map_stats WHERE team_name = $1 ORDER BY win_rate DESC",
		[]any{"Sentinels"}, analytics.QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"map", "win_rate"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "Bind", result.Rows[0]["map"])
	assert.InDelta(t, 75.0, result.Rows[0]["win_rate"], 0.001)
	assert.Equal(t, "duckdb", exec.Backend())
}

func TestQuery_TruncatesAtRowCap(t *testing.T) {
	path := seed(t,
		`CREATE TABLE v_player_stats AS
			SELECT 'Team ' || CAST(i % 50 AS VARCHAR) AS team_name, 'player' || CAST(i AS VARCHAR) AS player_name, i AS kills
			FROM range(10000) t(i)`,
	)
	exec := openReadOnly(t, path)

	result, err := exec.Query(context.Background(),
		"SELECT team_name, player_name, kills FROM v_player_stats", nil, analytics.QueryOptions{})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, analytics.DefaultRowCap, result.RowCount)
	assert.Len(t, result.Rows, analytics.DefaultRowCap)
	require.NotNil(t, result.TotalRows)
	assert.Equal(t, int64(10000), *result.TotalRows)
}

func TestQuery_SkipTotal(t *testing.T) {
	path := seed(t, `CREATE TABLE series AS SELECT i AS series_id FROM range(20) t(i)`)
	exec := openReadOnly(t, path)

	result, err := exec.Query(context.Background(), "SELECT series_id FROM series", nil,
		analytics.QueryOptions{RowCap: 5, SkipTotal: true})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 5, result.RowCount)
	assert.Nil(t, result.TotalRows)
}

func TestQuery_RejectsWrites(t *testing.T) {
	path := seed(t, `CREATE TABLE series (series_id INTEGER)`)
	exec := openReadOnly(t, path)

	_, err := exec.Query(context.Background(), "INSERT INTO series VALUES (1) RETURNING series_id", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExecutionFailed, apperrors.KindOf(err))
}

func TestQuery_UnknownRelationIsSanitized(t *testing.T) {
	path := seed(t, `CREATE TABLE series (series_id INTEGER)`)
	exec := openReadOnly(t, path)

	_, err := exec.Query(context.Background(), "SELECT * FROM secret_table", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExecutionFailed, apperrors.KindOf(err))
	assert.NotContains(t, apperrors.UserMessage(err), "secret_table")
}

func TestQuery_CallerDeadlineIsTimeout(t *testing.T) {
	path := seed(t, `CREATE TABLE series (series_id INTEGER)`)
	exec := openReadOnly(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := exec.Query(ctx, "SELECT series_id FROM series", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindQueryTimeout, apperrors.KindOf(err))
}

func TestQuery_CallerCancelIsTimeout(t *testing.T) {
	path := seed(t, `CREATE TABLE series (series_id INTEGER)`)
	exec := openReadOnly(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Query(ctx, "SELECT series_id FROM series", nil, analytics.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindQueryTimeout, apperrors.KindOf(err))
}
