package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/repositories"
	"github.com/vlrscout/scout-engine/pkg/workerpool"
)

// Weakness thresholds.
const (
	weakMapWinRate      = 45.0
	criticalMapWinRate  = 35.0
	weakPistolWinRate   = 40.0
	criticalPistolRate  = 30.0
	weakPlayerKD        = 0.9
	minGamesForWeakness = 3

	defaultMatchWindow   = 10
	defaultPistolWinRate = 50.0
	agentPoolSize        = 5
	topWeapons           = 10
	overviewSeries       = 5
	headToHeadLimit      = 50
)

const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
)

// ScoutingService serves the fixed scouting sections. Team names are matched
// case-insensitively; an unknown team is a KindUnknownTeam error wrapping
// apperrors.ErrUnknownTeam.
type ScoutingService interface {
	Overview(ctx context.Context, team string, numMatches int) (*models.TeamOverview, error)
	Maps(ctx context.Context, team string) ([]models.MapStat, error)
	Compositions(ctx context.Context, team string) (*models.TeamCompositions, error)
	Players(ctx context.Context, team string) (*models.TeamPlayers, error)
	Weaknesses(ctx context.Context, team string) (*models.TeamWeaknesses, error)
	Pistol(ctx context.Context, team string) (*models.PistolStats, error)
	Rounds(ctx context.Context, team string) (*models.RoundPatterns, error)
	Weapons(ctx context.Context, team string) (*models.WeaponEconomy, error)
	HeadToHead(ctx context.Context, team1, team2 string) (*models.HeadToHead, error)
	Scout(ctx context.Context, team string, numMatches int) (*models.ScoutingData, error)
}

type scoutingService struct {
	repo       repositories.ScoutingRepository
	teams      TeamSource
	pool       *workerpool.Pool
	maxMatches int
	logger     *zap.Logger
}

func NewScoutingService(repo repositories.ScoutingRepository, teams TeamSource, pool *workerpool.Pool, maxMatches int, logger *zap.Logger) ScoutingService {
	if maxMatches <= 0 {
		maxMatches = 100
	}
	return &scoutingService{
		repo:       repo,
		teams:      teams,
		pool:       pool,
		maxMatches: maxMatches,
		logger:     logger.Named("scouting-service"),
	}
}

var _ ScoutingService = (*scoutingService)(nil)

func (s *scoutingService) resolve(ctx context.Context, team string) (string, error) {
	name := strings.TrimSpace(team)
	if name == "" {
		return "", apperrors.Wrap(apperrors.KindInvalidInput, "A team name is required.", apperrors.ErrInvalidRequest)
	}
	canonical, ok, err := s.teams.Canonical(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve team: %w", err)
	}
	if !ok {
		return "", apperrors.Wrap(apperrors.KindUnknownTeam,
			fmt.Sprintf("Unknown team %q. Pick a team from the list.", name), apperrors.ErrUnknownTeam)
	}
	return canonical, nil
}

func (s *scoutingService) window(numMatches int) int {
	if numMatches <= 0 {
		return defaultMatchWindow
	}
	return min(numMatches, s.maxMatches)
}

func (s *scoutingService) Overview(ctx context.Context, team string, numMatches int) (*models.TeamOverview, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, name, s.window(numMatches))
}

func (s *scoutingService) overview(ctx context.Context, team string, window int) (*models.TeamOverview, error) {
	series, err := s.repo.RecentSeries(ctx, team, window)
	if err != nil {
		return nil, err
	}
	maps, err := s.repo.MapStats(ctx, team)
	if err != nil {
		return nil, err
	}

	wins := 0
	for _, sr := range series {
		if sr.Result == "W" {
			wins++
		}
	}
	winRate := 0.0
	if len(series) > 0 {
		winRate = round1(100 * float64(wins) / float64(len(series)))
	}

	return &models.TeamOverview{
		Team:          team,
		WinRate:       winRate,
		SeriesRecord:  fmt.Sprintf("%d-%d", wins, len(series)-wins),
		SeriesPlayed:  len(series),
		MapStats:      maps,
		RecentSeries:  series[:min(overviewSeries, len(series))],
		MatchesWindow: window,
	}, nil
}

func (s *scoutingService) Maps(ctx context.Context, team string) ([]models.MapStat, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.repo.MapStats(ctx, name)
}

func (s *scoutingService) Compositions(ctx context.Context, team string) (*models.TeamCompositions, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.compositions(ctx, name)
}

func (s *scoutingService) compositions(ctx context.Context, team string) (*models.TeamCompositions, error) {
	picks, err := s.repo.AgentPicks(ctx, team)
	if err != nil {
		return nil, err
	}
	roles := make(map[string]float64)
	for _, p := range picks {
		role := p.Role
		if role == "" {
			role = "Unknown"
		}
		roles[role] += p.PickRate
	}
	return &models.TeamCompositions{AgentPicks: picks, RoleDistribution: roles}, nil
}

func (s *scoutingService) Players(ctx context.Context, team string) (*models.TeamPlayers, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.players(ctx, name)
}

func (s *scoutingService) players(ctx context.Context, team string) (*models.TeamPlayers, error) {
	players, err := s.repo.PlayerStats(ctx, team)
	if err != nil {
		return nil, err
	}
	pools, err := s.repo.AgentPools(ctx, team, agentPoolSize)
	if err != nil {
		return nil, err
	}
	for i := range players {
		pool := pools[players[i].PlayerName]
		if pool == nil {
			pool = []models.AgentPoolEntry{}
		}
		players[i].AgentPool = pool
	}
	return &models.TeamPlayers{Players: players}, nil
}

func (s *scoutingService) Weaknesses(ctx context.Context, team string) (*models.TeamWeaknesses, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.weaknesses(ctx, name)
}

func (s *scoutingService) weaknesses(ctx context.Context, team string) (*models.TeamWeaknesses, error) {
	maps, err := s.repo.MapStats(ctx, team)
	if err != nil {
		return nil, err
	}
	pistol, err := s.pistol(ctx, team)
	if err != nil {
		return nil, err
	}
	players, err := s.repo.PlayerStats(ctx, team)
	if err != nil {
		return nil, err
	}
	return findWeaknesses(maps, pistol, players), nil
}

// findWeaknesses flags weak maps, weak pistol sides and underperforming players.
func findWeaknesses(maps []models.MapStat, pistol *models.PistolStats, players []models.PlayerStat) *models.TeamWeaknesses {
	weaknesses := []models.Weakness{}

	weakMaps := make([]models.MapStat, 0, len(maps))
	for _, m := range maps {
		if m.WinRate < weakMapWinRate && m.Games >= minGamesForWeakness {
			weakMaps = append(weakMaps, m)
		}
	}
	sort.SliceStable(weakMaps, func(i, j int) bool { return weakMaps[i].WinRate < weakMaps[j].WinRate })
	for _, m := range weakMaps {
		weaknesses = append(weaknesses, models.Weakness{
			Category:       "Map Pool",
			Severity:       severity(m.WinRate < criticalMapWinRate),
			Finding:        "Poor performance on " + m.Map,
			Details:        fmt.Sprintf("Win rate of %s%% across %d games", trimDecimal(m.WinRate, 1), m.Games),
			Recommendation: fmt.Sprintf("Consider banning %s or prepare specific counter-strategies", m.Map),
		})
	}

	sides := []struct {
		name string
		rate float64
	}{
		{"attack", pistol.AttackPistol.WinRate},
		{"defense", pistol.DefensePistol.WinRate},
	}
	for _, side := range sides {
		if side.rate >= weakPistolWinRate {
			continue
		}
		weaknesses = append(weaknesses, models.Weakness{
			Category:       "Pistol Rounds",
			Severity:       severity(side.rate < criticalPistolRate),
			Finding:        fmt.Sprintf("Weak %s pistol rounds", side.name),
			Details:        fmt.Sprintf("Win rate of %s%%", trimDecimal(side.rate, 1)),
			Recommendation: fmt.Sprintf("Exploit their %s side pistol with aggressive plays", side.name),
		})
	}

	for _, p := range players {
		if p.KDRatio >= weakPlayerKD || p.Games < minGamesForWeakness {
			continue
		}
		weaknesses = append(weaknesses, models.Weakness{
			Category:       "Player Performance",
			Severity:       SeverityMedium,
			Finding:        p.PlayerName + " is underperforming",
			Details:        fmt.Sprintf("K/D of %.2f across %d games", p.KDRatio, p.Games),
			Recommendation: fmt.Sprintf("Target %s in duels", p.PlayerName),
		})
	}

	return &models.TeamWeaknesses{Weaknesses: weaknesses, Summary: summarizeWeaknesses(weaknesses)}
}

func severity(critical bool) string {
	if critical {
		return SeverityHigh
	}
	return SeverityMedium
}

func summarizeWeaknesses(weaknesses []models.Weakness) string {
	if len(weaknesses) == 0 {
		return "No significant weaknesses identified - well-rounded team."
	}
	var categories []string
	seen := make(map[string]bool)
	for _, w := range weaknesses {
		if w.Severity == SeverityHigh && !seen[w.Category] {
			seen[w.Category] = true
			categories = append(categories, w.Category)
		}
	}
	if len(categories) > 0 {
		high := 0
		for _, w := range weaknesses {
			if w.Severity == SeverityHigh {
				high++
			}
		}
		return fmt.Sprintf("CRITICAL: %d major weakness(es) - %s", high, strings.Join(categories, ", "))
	}
	return fmt.Sprintf("Found %d exploitable weakness(es)", len(weaknesses))
}

func (s *scoutingService) Pistol(ctx context.Context, team string) (*models.PistolStats, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.pistol(ctx, name)
}

func (s *scoutingService) pistol(ctx context.Context, team string) (*models.PistolStats, error) {
	rows, err := s.repo.PistolRounds(ctx, team)
	if err != nil {
		return nil, err
	}
	stats := &models.PistolStats{
		AttackPistol:   models.SideWinRate{WinRate: defaultPistolWinRate},
		DefensePistol:  models.SideWinRate{WinRate: defaultPistolWinRate},
		OverallWinRate: defaultPistolWinRate,
	}
	var rounds, wins int64
	for _, r := range rows {
		if r.IsAttack {
			stats.AttackPistol.WinRate = r.WinRate
		} else {
			stats.DefensePistol.WinRate = r.WinRate
		}
		rounds += r.Rounds
		wins += r.Wins
	}
	if rounds > 0 {
		stats.OverallWinRate = round1(100 * float64(wins) / float64(rounds))
	}
	return stats, nil
}

func (s *scoutingService) Rounds(ctx context.Context, team string) (*models.RoundPatterns, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.rounds(ctx, name)
}

func (s *scoutingService) rounds(ctx context.Context, team string) (*models.RoundPatterns, error) {
	rows, err := s.repo.RoundWinTypes(ctx, team)
	if err != nil {
		return nil, err
	}
	patterns := &models.RoundPatterns{}
	patterns.WinConditions.Attack = []models.WinCondition{}
	patterns.WinConditions.Defense = []models.WinCondition{}
	for _, r := range rows {
		c := models.WinCondition{Condition: r.WinType, Percentage: r.Percentage}
		if r.OnAttack {
			patterns.WinConditions.Attack = append(patterns.WinConditions.Attack, c)
		} else {
			patterns.WinConditions.Defense = append(patterns.WinConditions.Defense, c)
		}
	}
	return patterns, nil
}

func (s *scoutingService) Weapons(ctx context.Context, team string) (*models.WeaponEconomy, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	return s.weapons(ctx, name)
}

func (s *scoutingService) weapons(ctx context.Context, team string) (*models.WeaponEconomy, error) {
	usage, err := s.repo.WeaponUsage(ctx, team, topWeapons)
	if err != nil {
		return nil, err
	}
	return &models.WeaponEconomy{WeaponUsage: usage}, nil
}

func (s *scoutingService) HeadToHead(ctx context.Context, team1, team2 string) (*models.HeadToHead, error) {
	name1, err := s.resolve(ctx, team1)
	if err != nil {
		return nil, err
	}
	name2, err := s.resolve(ctx, team2)
	if err != nil {
		return nil, err
	}

	matches, err := s.repo.HeadToHead(ctx, name1, name2, headToHeadLimit)
	if err != nil {
		return nil, err
	}
	h2h := &models.HeadToHead{Team1: name1, Team2: name2, TotalGames: len(matches), Matches: matches}
	for _, m := range matches {
		switch m.Winner {
		case name1:
			h2h.Team1Wins++
		case name2:
			h2h.Team2Wins++
		}
	}
	return h2h, nil
}

// Scout fetches every section concurrently through the worker pool.
func (s *scoutingService) Scout(ctx context.Context, team string, numMatches int) (*models.ScoutingData, error) {
	name, err := s.resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	window := s.window(numMatches)
	data := &models.ScoutingData{Team: name}

	// Each item writes a distinct field of data.
	section := func(id string, fetch func(ctx context.Context) error) workerpool.Item[struct{}] {
		return workerpool.Item[struct{}]{
			ID: id,
			Execute: func(ctx context.Context) (struct{}, error) {
				return struct{}{}, fetch(ctx)
			},
		}
	}
	items := []workerpool.Item[struct{}]{
		section("overview", func(ctx context.Context) (err error) {
			data.Overview, err = s.overview(ctx, name, window)
			return err
		}),
		section("compositions", func(ctx context.Context) (err error) {
			data.Compositions, err = s.compositions(ctx, name)
			return err
		}),
		section("players", func(ctx context.Context) (err error) {
			data.Players, err = s.players(ctx, name)
			return err
		}),
		section("weaknesses", func(ctx context.Context) (err error) {
			data.Weaknesses, err = s.weaknesses(ctx, name)
			return err
		}),
		section("pistol_rounds", func(ctx context.Context) (err error) {
			data.PistolRounds, err = s.pistol(ctx, name)
			return err
		}),
		section("round_patterns", func(ctx context.Context) (err error) {
			data.RoundPatterns, err = s.rounds(ctx, name)
			return err
		}),
		section("weapon_economy", func(ctx context.Context) (err error) {
			data.WeaponEconomy, err = s.weapons(ctx, name)
			return err
		}),
	}

	for _, r := range workerpool.Process(ctx, s.pool, items) {
		if r.Err != nil {
			s.logger.Error("Failed to build scouting section",
				zap.String("team", name),
				zap.String("section", r.ID),
				zap.Error(r.Err))
			return nil, fmt.Errorf("failed to build %s: %w", r.ID, r.Err)
		}
	}
	return data, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
