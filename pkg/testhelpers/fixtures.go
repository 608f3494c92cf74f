package testhelpers

// Fixture teams. Cloud9's Haven row backs the "win rate on Haven" example; its
// Lotus, Bind and defense pistol rows sit below the weakness thresholds.
const (
	TeamSentinels = "Sentinels"
	TeamCloud9    = "Cloud9"
	TeamFnatic    = "Fnatic"
)

// FixtureTeams lists the teams present in the fixture, sorted.
var FixtureTeams = []string{TeamCloud9, TeamFnatic, TeamSentinels}

// FixtureStatements are dialect-neutral inserts accepted by both PostgreSQL and DuckDB.
var FixtureStatements = []string{
	`INSERT INTO series (series_id, tournament_name, team1_name, team2_name, team1_score, team2_score, winner_name, started_at) VALUES
		('s1', 'VCT Americas Stage 1', 'Sentinels', 'Cloud9', 2, 1, 'Sentinels', '2026-03-01 18:00:00+00'),
		('s2', 'Masters Toronto', 'Cloud9', 'Fnatic', 0, 2, 'Fnatic', '2026-03-05 18:00:00+00'),
		('s3', 'Masters Toronto', 'Sentinels', 'Fnatic', 2, 0, 'Sentinels', '2026-03-08 18:00:00+00'),
		('s4', 'VCT Americas Stage 2', 'Cloud9', 'Sentinels', 2, 0, 'Cloud9', '2026-03-12 18:00:00+00'),
		('s5', 'Champions', 'Fnatic', 'Sentinels', 2, 1, 'Fnatic', '2026-03-15 18:00:00+00'),
		('s6', 'Champions', 'Cloud9', 'Fnatic', 2, 1, 'Cloud9', '2026-03-20 18:00:00+00')`,

	`INSERT INTO v_team_map_stats (team_name, map, games, wins, win_rate, avg_round_diff) VALUES
		('Cloud9', 'Haven', 50, 29, 58.0, 2.10),
		('Cloud9', 'Bind', 10, 4, 40.0, -1.20),
		('Cloud9', 'Lotus', 6, 2, 33.3, -3.50),
		('Cloud9', 'Ascent', 2, 0, 0.0, -5.00),
		('Sentinels', 'Bind', 8, 6, 75.0, 3.25),
		('Sentinels', 'Haven', 5, 2, 40.0, -1.50),
		('Sentinels', 'Split', 7, 4, 57.1, 0.80),
		('Fnatic', 'Ascent', 9, 7, 77.8, 4.10),
		('Fnatic', 'Icebox', 4, 3, 75.0, 2.00)`,

	`INSERT INTO v_team_agent_picks (team_name, agent, role, games, pick_rate) VALUES
		('Cloud9', 'Jett', 'Duelist', 40, 80.0),
		('Cloud9', 'Omen', 'Controller', 35, 70.0),
		('Cloud9', 'Sova', 'Initiator', 30, 60.0),
		('Cloud9', 'Killjoy', 'Sentinel', 25, 50.0),
		('Cloud9', 'Raze', 'Duelist', 10, 20.0),
		('Sentinels', 'Viper', 'Controller', 18, 90.0),
		('Sentinels', 'Jett', 'Duelist', 12, 60.0),
		('Fnatic', 'Viper', 'Controller', 13, 100.0)`,

	`INSERT INTO v_player_agent_pool (team_name, player_name, agent, games, kills, deaths, kd_ratio) VALUES
		('Cloud9', 'zellsis', 'Jett', 20, 380, 300, 1.27),
		('Cloud9', 'zellsis', 'Raze', 6, 100, 110, 0.91),
		('Cloud9', 'xeppaa', 'Sova', 25, 410, 390, 1.05),
		('Cloud9', 'vanity', 'Omen', 30, 300, 420, 0.71),
		('Sentinels', 'zekken', 'Jett', 12, 260, 200, 1.30),
		('Fnatic', 'Boaster', 'Viper', 13, 150, 210, 0.71)`,

	`INSERT INTO v_player_stats (team_name, player_name, games, kills, deaths, assists, kd_ratio) VALUES
		('Cloud9', 'zellsis', 26, 480, 410, 120, 1.17),
		('Cloud9', 'xeppaa', 25, 410, 390, 200, 1.05),
		('Cloud9', 'vanity', 30, 300, 420, 260, 0.71),
		('Cloud9', 'runi', 2, 20, 30, 10, 0.67),
		('Sentinels', 'zekken', 20, 420, 330, 90, 1.27),
		('Sentinels', 'johnqt', 20, 250, 300, 310, 0.83),
		('Fnatic', 'Boaster', 13, 150, 210, 280, 0.71),
		('Fnatic', 'Derke', 13, 290, 220, 60, 1.32)`,

	`INSERT INTO v_pistol_performance (team_name, is_attack, rounds, wins, win_rate) VALUES
		('Cloud9', true, 20, 11, 55.0),
		('Cloud9', false, 20, 5, 25.0),
		('Sentinels', true, 16, 10, 62.5),
		('Sentinels', false, 16, 6, 37.5),
		('Fnatic', true, 12, 6, 50.0)`,

	`INSERT INTO v_weapon_usage (team_name, weapon, kills, games) VALUES
		('Cloud9', 'Vandal', 900, 60),
		('Cloud9', 'Phantom', 400, 45),
		('Cloud9', 'Operator', 150, 30),
		('Cloud9', 'Sheriff', 60, 40),
		('Sentinels', 'Vandal', 500, 20),
		('Sentinels', 'Operator', 200, 18),
		('Fnatic', 'Phantom', 300, 13)`,

	`INSERT INTO v_round_win_types (team_name, win_type, on_attack, count, percentage) VALUES
		('Cloud9', 'opponentEliminated', true, 120, 60.0),
		('Cloud9', 'bombExploded', true, 80, 40.0),
		('Cloud9', 'opponentEliminated', false, 110, 55.0),
		('Cloud9', 'bombDefused', false, 50, 25.0),
		('Cloud9', 'timeExpired', false, 40, 20.0),
		('Sentinels', 'opponentEliminated', true, 90, 70.0),
		('Sentinels', 'bombExploded', true, 39, 30.0)`,
}
