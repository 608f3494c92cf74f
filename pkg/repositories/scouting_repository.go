package repositories

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// teamListCap bounds the team directory query; the match database holds far fewer teams.
const teamListCap = 5000

// ScoutingRepository runs the fixed scouting queries. All statements are
// parameterized and go through the analytics executor's guardrails.
type ScoutingRepository interface {
	ListTeams(ctx context.Context) ([]string, error)
	RecentSeries(ctx context.Context, team string, limit int) ([]models.SeriesResult, error)
	MapStats(ctx context.Context, team string) ([]models.MapStat, error)
	AgentPicks(ctx context.Context, team string) ([]models.AgentPick, error)
	PlayerStats(ctx context.Context, team string) ([]models.PlayerStat, error)
	AgentPools(ctx context.Context, team string, perPlayer int) (map[string][]models.AgentPoolEntry, error)
	PistolRounds(ctx context.Context, team string) ([]PistolRow, error)
	RoundWinTypes(ctx context.Context, team string) ([]RoundWinRow, error)
	WeaponUsage(ctx context.Context, team string, limit int) ([]models.WeaponUsage, error)
	HeadToHead(ctx context.Context, team1, team2 string, limit int) ([]models.HeadToHeadMatch, error)
}

// PistolRow is one side of v_pistol_performance.
type PistolRow struct {
	IsAttack bool
	Rounds   int64
	Wins     int64
	WinRate  float64
}

// RoundWinRow is one win condition of v_round_win_types.
type RoundWinRow struct {
	WinType    string
	OnAttack   bool
	Count      int64
	Percentage float64
}

type scoutingRepository struct {
	exec analytics.Executor
}

func NewScoutingRepository(exec analytics.Executor) ScoutingRepository {
	return &scoutingRepository{exec: exec}
}

var _ ScoutingRepository = (*scoutingRepository)(nil)

func (r *scoutingRepository) query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	result, err := r.exec.Query(ctx, sql, args, analytics.QueryOptions{SkipTotal: true})
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

func (r *scoutingRepository) ListTeams(ctx context.Context) ([]string, error) {
	query := `
		SELECT team_name FROM (
			SELECT team1_name AS team_name FROM series
			UNION SELECT team2_name FROM series
			UNION SELECT team_name FROM v_team_map_stats
		) AS teams
		WHERE team_name IS NOT NULL AND team_name <> ''
		ORDER BY team_name`

	result, err := r.exec.Query(ctx, query, nil, analytics.QueryOptions{RowCap: teamListCap, SkipTotal: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	teams := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		teams = append(teams, asString(row["team_name"]))
	}
	return teams, nil
}

func (r *scoutingRepository) RecentSeries(ctx context.Context, team string, limit int) ([]models.SeriesResult, error) {
	query := `
		SELECT
			CASE WHEN team1_name = $1 THEN team2_name ELSE team1_name END AS opponent,
			CASE WHEN winner_name = $1 THEN 'W' ELSE 'L' END AS result,
			CASE WHEN team1_name = $1 THEN team1_score ELSE team2_score END AS own_score,
			CASE WHEN team1_name = $1 THEN team2_score ELSE team1_score END AS opponent_score,
			tournament_name
		FROM series
		WHERE team1_name = $1 OR team2_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.query(ctx, query, team, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent series: %w", err)
	}

	series := make([]models.SeriesResult, 0, len(rows))
	for _, row := range rows {
		series = append(series, models.SeriesResult{
			Opponent:   asString(row["opponent"]),
			Result:     asString(row["result"]),
			Score:      fmt.Sprintf("%d-%d", asInt64(row["own_score"]), asInt64(row["opponent_score"])),
			Tournament: asString(row["tournament_name"]),
		})
	}
	return series, nil
}

func (r *scoutingRepository) MapStats(ctx context.Context, team string) ([]models.MapStat, error) {
	query := `
		SELECT map, games, wins, win_rate, avg_round_diff
		FROM v_team_map_stats
		WHERE team_name = $1
		ORDER BY games DESC, map`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get map stats: %w", err)
	}

	stats := make([]models.MapStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, models.MapStat{
			Map:          asString(row["map"]),
			Games:        asInt64(row["games"]),
			Wins:         asInt64(row["wins"]),
			WinRate:      asFloat64(row["win_rate"]),
			AvgRoundDiff: asFloat64(row["avg_round_diff"]),
		})
	}
	return stats, nil
}

func (r *scoutingRepository) AgentPicks(ctx context.Context, team string) ([]models.AgentPick, error) {
	query := `
		SELECT agent, role, games, pick_rate
		FROM v_team_agent_picks
		WHERE team_name = $1
		ORDER BY pick_rate DESC, agent`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent picks: %w", err)
	}

	picks := make([]models.AgentPick, 0, len(rows))
	for _, row := range rows {
		picks = append(picks, models.AgentPick{
			Agent:    asString(row["agent"]),
			Role:     asString(row["role"]),
			Games:    asInt64(row["games"]),
			PickRate: asFloat64(row["pick_rate"]),
		})
	}
	return picks, nil
}

func (r *scoutingRepository) PlayerStats(ctx context.Context, team string) ([]models.PlayerStat, error) {
	query := `
		SELECT player_name, games, kills, deaths, assists, kd_ratio
		FROM v_player_stats
		WHERE team_name = $1
		ORDER BY kills DESC, player_name`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	players := make([]models.PlayerStat, 0, len(rows))
	for _, row := range rows {
		players = append(players, models.PlayerStat{
			PlayerName: asString(row["player_name"]),
			Games:      asInt64(row["games"]),
			Kills:      asInt64(row["kills"]),
			Deaths:     asInt64(row["deaths"]),
			Assists:    asInt64(row["assists"]),
			KDRatio:    asFloat64(row["kd_ratio"]),
			AgentPool:  []models.AgentPoolEntry{},
		})
	}
	return players, nil
}

// AgentPools returns each player's most played agents, at most perPlayer each.
func (r *scoutingRepository) AgentPools(ctx context.Context, team string, perPlayer int) (map[string][]models.AgentPoolEntry, error) {
	query := `
		SELECT player_name, agent, games, kd_ratio
		FROM v_player_agent_pool
		WHERE team_name = $1
		ORDER BY player_name, games DESC, agent`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent pools: %w", err)
	}

	pools := make(map[string][]models.AgentPoolEntry)
	for _, row := range rows {
		player := asString(row["player_name"])
		if perPlayer > 0 && len(pools[player]) >= perPlayer {
			continue
		}
		pools[player] = append(pools[player], models.AgentPoolEntry{
			Agent:   asString(row["agent"]),
			Games:   asInt64(row["games"]),
			KDRatio: asFloat64(row["kd_ratio"]),
		})
	}
	return pools, nil
}

func (r *scoutingRepository) PistolRounds(ctx context.Context, team string) ([]PistolRow, error) {
	query := `
		SELECT is_attack, rounds, wins, win_rate
		FROM v_pistol_performance
		WHERE team_name = $1
		ORDER BY is_attack DESC`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get pistol rounds: %w", err)
	}

	out := make([]PistolRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, PistolRow{
			IsAttack: asBool(row["is_attack"]),
			Rounds:   asInt64(row["rounds"]),
			Wins:     asInt64(row["wins"]),
			WinRate:  asFloat64(row["win_rate"]),
		})
	}
	return out, nil
}

func (r *scoutingRepository) RoundWinTypes(ctx context.Context, team string) ([]RoundWinRow, error) {
	query := `
		SELECT win_type, on_attack, count, percentage
		FROM v_round_win_types
		WHERE team_name = $1
		ORDER BY on_attack DESC, percentage DESC, win_type`

	rows, err := r.query(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get round win types: %w", err)
	}

	out := make([]RoundWinRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, RoundWinRow{
			WinType:    asString(row["win_type"]),
			OnAttack:   asBool(row["on_attack"]),
			Count:      asInt64(row["count"]),
			Percentage: asFloat64(row["percentage"]),
		})
	}
	return out, nil
}

func (r *scoutingRepository) WeaponUsage(ctx context.Context, team string, limit int) ([]models.WeaponUsage, error) {
	query := `
		SELECT weapon, SUM(kills) AS kills
		FROM v_weapon_usage
		WHERE team_name = $1
		GROUP BY weapon
		ORDER BY kills DESC, weapon
		LIMIT $2`

	rows, err := r.query(ctx, query, team, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get weapon usage: %w", err)
	}

	weapons := make([]models.WeaponUsage, 0, len(rows))
	for _, row := range rows {
		weapons = append(weapons, models.WeaponUsage{
			Weapon: asString(row["weapon"]),
			Kills:  asInt64(row["kills"]),
		})
	}
	return weapons, nil
}

func (r *scoutingRepository) HeadToHead(ctx context.Context, team1, team2 string, limit int) ([]models.HeadToHeadMatch, error) {
	query := `
		SELECT winner_name, team1_name, team1_score, team2_score, tournament_name, started_at
		FROM series
		WHERE (team1_name = $1 AND team2_name = $2) OR (team1_name = $2 AND team2_name = $1)
		ORDER BY started_at DESC
		LIMIT $3`

	rows, err := r.query(ctx, query, team1, team2, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get head to head: %w", err)
	}

	matches := make([]models.HeadToHeadMatch, 0, len(rows))
	for _, row := range rows {
		s1, s2 := asInt64(row["team1_score"]), asInt64(row["team2_score"])
		if asString(row["team1_name"]) != team1 {
			s1, s2 = s2, s1
		}
		m := models.HeadToHeadMatch{
			Winner:     asString(row["winner_name"]),
			Score:      fmt.Sprintf("%d-%d", s1, s2),
			Tournament: asString(row["tournament_name"]),
		}
		if ts, ok := row["started_at"].(time.Time); ok {
			m.StartedAt = ts.UTC().Format(time.RFC3339)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(math.Round(val))
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
