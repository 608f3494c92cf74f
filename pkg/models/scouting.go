package models

// Response shapes for the fixed scouting endpoints. Numeric fields mirror the
// analytics views; win rates and pick rates are percentages in [0,100].

type MapStat struct {
	Map          string  `json:"map"`
	Games        int64   `json:"games"`
	Wins         int64   `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgRoundDiff float64 `json:"avg_round_diff"`
}

type SeriesResult struct {
	Opponent   string `json:"opponent"`
	Result     string `json:"result"` // "W" or "L"
	Score      string `json:"score"`
	Tournament string `json:"tournament,omitempty"`
}

type TeamOverview struct {
	Team          string         `json:"team"`
	WinRate       float64        `json:"win_rate"`
	SeriesRecord  string         `json:"series_record"`
	SeriesPlayed  int            `json:"series_played"`
	MapStats      []MapStat      `json:"map_stats"`
	RecentSeries  []SeriesResult `json:"recent_series"`
	MatchesWindow int            `json:"num_matches"`
}

type AgentPick struct {
	Agent    string  `json:"agent"`
	Role     string  `json:"role"`
	Games    int64   `json:"games"`
	PickRate float64 `json:"pick_rate"`
}

type TeamCompositions struct {
	AgentPicks       []AgentPick        `json:"agent_picks"`
	RoleDistribution map[string]float64 `json:"role_distribution"`
}

type AgentPoolEntry struct {
	Agent   string  `json:"agent"`
	Games   int64   `json:"games"`
	KDRatio float64 `json:"kd_ratio"`
}

type PlayerStat struct {
	PlayerName string           `json:"player_name"`
	Games      int64            `json:"games"`
	Kills      int64            `json:"kills"`
	Deaths     int64            `json:"deaths"`
	Assists    int64            `json:"assists"`
	KDRatio    float64          `json:"kd_ratio"`
	AgentPool  []AgentPoolEntry `json:"agent_pool"`
}

type TeamPlayers struct {
	Players []PlayerStat `json:"players"`
}

type Weakness struct {
	Category       string `json:"category"`
	Severity       string `json:"severity"` // HIGH or MEDIUM
	Finding        string `json:"finding"`
	Details        string `json:"details"`
	Recommendation string `json:"recommendation"`
}

type TeamWeaknesses struct {
	Weaknesses []Weakness `json:"weaknesses"`
	Summary    string     `json:"summary"`
}

type SideWinRate struct {
	WinRate float64 `json:"win_rate"`
}

type PistolStats struct {
	AttackPistol   SideWinRate `json:"attack_pistol"`
	DefensePistol  SideWinRate `json:"defense_pistol"`
	OverallWinRate float64     `json:"overall_pistol_win_rate"`
}

type WinCondition struct {
	Condition  string  `json:"condition"`
	Percentage float64 `json:"percentage"`
}

type RoundPatterns struct {
	WinConditions struct {
		Attack  []WinCondition `json:"attack"`
		Defense []WinCondition `json:"defense"`
	} `json:"win_conditions"`
}

type WeaponUsage struct {
	Weapon string `json:"weapon"`
	Kills  int64  `json:"kills"`
}

type WeaponEconomy struct {
	WeaponUsage []WeaponUsage `json:"weapon_usage"`
}

type HeadToHeadMatch struct {
	Winner     string `json:"winner"`
	Score      string `json:"score"`
	Tournament string `json:"tournament"`
	StartedAt  string `json:"started_at,omitempty"`
}

type HeadToHead struct {
	Team1      string            `json:"team1"`
	Team2      string            `json:"team2"`
	Team1Wins  int               `json:"team1_wins"`
	Team2Wins  int               `json:"team2_wins"`
	TotalGames int               `json:"total_series"`
	Matches    []HeadToHeadMatch `json:"matches"`
}

// ScoutingData is every section of a team's scouting report.
type ScoutingData struct {
	Team          string            `json:"team"`
	Overview      *TeamOverview     `json:"overview"`
	Compositions  *TeamCompositions `json:"compositions"`
	Players       *TeamPlayers      `json:"players"`
	Weaknesses    *TeamWeaknesses   `json:"weaknesses"`
	PistolRounds  *PistolStats      `json:"pistol_rounds"`
	RoundPatterns *RoundPatterns    `json:"round_patterns"`
	WeaponEconomy *WeaponEconomy    `json:"weapon_economy"`
}

// ScoutingReport is a markdown report on one team.
type ScoutingReport struct {
	Team   string `json:"team"`
	Report string `json:"report"`
	// Source is "llm" or "template".
	Source string `json:"source"`
}
