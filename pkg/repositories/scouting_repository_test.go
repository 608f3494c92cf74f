package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics/duckdb"
	"github.com/vlrscout/scout-engine/pkg/testhelpers"
)

func newFixtureRepository(t *testing.T) ScoutingRepository {
	t.Helper()
	path := testhelpers.NewDuckDBFixture(t)
	exec, err := duckdb.Open(context.Background(), path+"?access_mode=READ_ONLY", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return NewScoutingRepository(exec)
}

func TestScoutingRepository_ListTeams(t *testing.T) {
	repo := newFixtureRepository(t)

	teams, err := repo.ListTeams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testhelpers.FixtureTeams, teams)
}

func TestScoutingRepository_RecentSeries(t *testing.T) {
	repo := newFixtureRepository(t)

	series, err := repo.RecentSeries(context.Background(), testhelpers.TeamCloud9, 3)
	require.NoError(t, err)
	require.Len(t, series, 3)

	// s6, s4, s2 newest first, scores from Cloud9's side
	assert.Equal(t, "Fnatic", series[0].Opponent)
	assert.Equal(t, "W", series[0].Result)
	assert.Equal(t, "2-1", series[0].Score)
	assert.Equal(t, "Sentinels", series[1].Opponent)
	assert.Equal(t, "W", series[1].Result)
	assert.Equal(t, "L", series[2].Result)
	assert.Equal(t, "0-2", series[2].Score)
}

func TestScoutingRepository_MapStats(t *testing.T) {
	repo := newFixtureRepository(t)

	stats, err := repo.MapStats(context.Background(), testhelpers.TeamCloud9)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, "Haven", stats[0].Map)
	assert.Equal(t, int64(50), stats[0].Games)
	assert.InDelta(t, 58.0, stats[0].WinRate, 0.001)
	assert.InDelta(t, 2.10, stats[0].AvgRoundDiff, 0.001)
}

func TestScoutingRepository_AgentPools(t *testing.T) {
	repo := newFixtureRepository(t)

	pools, err := repo.AgentPools(context.Background(), testhelpers.TeamCloud9, 1)
	require.NoError(t, err)
	require.Len(t, pools["zellsis"], 1)
	assert.Equal(t, "Jett", pools["zellsis"][0].Agent)
	assert.Len(t, pools["vanity"], 1)
}

func TestScoutingRepository_WeaponUsage(t *testing.T) {
	repo := newFixtureRepository(t)

	weapons, err := repo.WeaponUsage(context.Background(), testhelpers.TeamCloud9, 2)
	require.NoError(t, err)
	require.Len(t, weapons, 2)
	assert.Equal(t, "Vandal", weapons[0].Weapon)
	assert.Equal(t, int64(900), weapons[0].Kills)
}

func TestScoutingRepository_HeadToHead(t *testing.T) {
	repo := newFixtureRepository(t)

	matches, err := repo.HeadToHead(context.Background(), testhelpers.TeamSentinels, testhelpers.TeamCloud9, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "Cloud9", matches[0].Winner)
	assert.Equal(t, "0-2", matches[0].Score, "score is from the first team's side")
	assert.Equal(t, "Sentinels", matches[1].Winner)
	assert.Equal(t, "2-1", matches[1].Score)
}

func TestScoutingRepository_PistolAndRounds(t *testing.T) {
	repo := newFixtureRepository(t)
	ctx := context.Background()

	pistol, err := repo.PistolRounds(ctx, testhelpers.TeamCloud9)
	require.NoError(t, err)
	require.Len(t, pistol, 2)
	assert.True(t, pistol[0].IsAttack)
	assert.InDelta(t, 25.0, pistol[1].WinRate, 0.001)

	rounds, err := repo.RoundWinTypes(ctx, testhelpers.TeamCloud9)
	require.NoError(t, err)
	assert.Len(t, rounds, 5)
}

func TestScoutingRepository_UnknownTeamIsEmpty(t *testing.T) {
	repo := newFixtureRepository(t)

	stats, err := repo.MapStats(context.Background(), "NotARealTeam")
	require.NoError(t, err)
	assert.Empty(t, stats)
}
