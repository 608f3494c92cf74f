package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{name: "none", sql: "SELECT * FROM series", expected: nil},
		{
			name:     "ordered and deduplicated",
			sql:      "SELECT * FROM series WHERE (team1_name = {{team_name}} OR team2_name = {{team_name}}) LIMIT {{num_matches}}",
			expected: []string{"team_name", "num_matches"},
		},
		{
			name:     "placeholder in literal ignored",
			sql:      "SELECT '{{nope}}' AS x FROM series WHERE team1_name = {{team_name}}",
			expected: []string{"team_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractParameters(tt.sql))
		})
	}
}

func TestSubstituteParameters(t *testing.T) {
	sqlQuery := "SELECT win_rate FROM v_team_map_stats WHERE team_name = {{team_name}} AND map = {{f_map}} OR team_name = {{team_name}}"
	prepared, args, err := SubstituteParameters(sqlQuery, map[string]any{
		"team_name": "Cloud9",
		"f_map":     "Haven",
		"unused":    42,
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT win_rate FROM v_team_map_stats WHERE team_name = $1 AND map = $2 OR team_name = $1", prepared)
	assert.Equal(t, []any{"Cloud9", "Haven"}, args)
}

func TestSubstituteParameters_NeverSplicesValues(t *testing.T) {
	hostile := "Cloud9'; DROP TABLE series; --"
	prepared, args, err := SubstituteParameters("SELECT * FROM series WHERE team1_name = {{team_name}}", map[string]any{
		"team_name": hostile,
	})
	require.NoError(t, err)

	assert.NotContains(t, prepared, "DROP")
	assert.Equal(t, []any{hostile}, args)
}

func TestSubstituteParameters_MissingBinding(t *testing.T) {
	_, _, err := SubstituteParameters("SELECT * FROM series LIMIT {{num_matches}}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_matches")
}

func TestValidateBindings_PlaceholderInsideLiteral(t *testing.T) {
	err := ValidateBindings("SELECT * FROM series WHERE team1_name = '{{team_name}}'", map[string]any{"team_name": "Cloud9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string literal")
}

func TestFindParametersInStringLiterals(t *testing.T) {
	assert.Equal(t, []string{"name"}, FindParametersInStringLiterals("SELECT 'Hello {{name}}' FROM t"))
	assert.Nil(t, FindParametersInStringLiterals("SELECT * FROM t WHERE name = {{name}}"))
}

func TestStringLiterals(t *testing.T) {
	literals, err := StringLiterals("SELECT * FROM v_team_map_stats WHERE team_name = 'Cloud9' AND map = 'It''s'")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cloud9", "It's"}, literals)
}

func TestParseSelectColumns(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{name: "plain", sql: "SELECT map, win_rate FROM v_team_map_stats", expected: []string{"map", "win_rate"}},
		{
			name:     "aliases and functions",
			sql:      "SELECT map, SUM(wins) * 100.0 / NULLIF(SUM(games), 0) AS overall_win_rate, COUNT(*) FROM v_team_map_stats GROUP BY map",
			expected: []string{"map", "overall_win_rate", "count(*)"},
		},
		{name: "qualified", sql: "SELECT s.winner_name FROM series s", expected: []string{"winner_name"}},
		{name: "distinct", sql: "SELECT DISTINCT team1_name FROM series", expected: []string{"team1_name"}},
		{
			name:     "outer select of wrapped query",
			sql:      "SELECT map, games FROM (SELECT * FROM v_team_map_stats) AS sub",
			expected: []string{"map", "games"},
		},
		{name: "star", sql: "SELECT * FROM series", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := ParseSelectColumns(tt.sql)
			require.NoError(t, err)
			var names []string
			for _, c := range cols {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}
