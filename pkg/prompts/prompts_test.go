package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSQLProposalPrompt(t *testing.T) {
	prompt := BuildSQLProposalPrompt(ProposalContext{
		Question:    "What is Cloud9's win rate on Haven?",
		Relation:    "v_team_map_stats",
		Description: "Per-team results on each map.",
		Columns: []ColumnContext{
			{Name: "team_name", SemanticType: "identifier", Description: "Team name"},
			{Name: "map", SemanticType: "categorical", Description: "Map name", Values: []string{"Bind", "Haven"}},
			{Name: "avg_round_diff", SemanticType: "metric_ratio", IsNullable: true, Description: "Round differential"},
		},
		Placeholders: []string{"team_name", "f_map"},
		Aggregation:  "none",
		Template:     "SELECT win_rate FROM v_team_map_stats WHERE team_name = {{team_name}} AND map = {{f_map}}",
	})

	assert.Contains(t, prompt, "### v_team_map_stats")
	assert.Contains(t, prompt, "- map [categorical]: Map name")
	assert.Contains(t, prompt, "values: Bind, Haven")
	assert.Contains(t, prompt, "- avg_round_diff [metric_ratio] (nullable)")
	assert.Contains(t, prompt, "{{team_name}}, {{f_map}}")
	assert.Contains(t, prompt, "Query only v_team_map_stats")
	assert.Contains(t, prompt, "Return ONLY the JSON")
}

func TestBuildSQLProposalPrompt_NoPlaceholders(t *testing.T) {
	prompt := BuildSQLProposalPrompt(ProposalContext{Relation: "series", Template: "SELECT series_id FROM series"})
	assert.Contains(t, prompt, "takes no parameters")
}

func TestBuildInterpretationPrompt(t *testing.T) {
	prompt := BuildInterpretationPrompt(InterpretationContext{
		Question: "Who has the most kills?",
		Team:     "Cloud9",
		Summary:  "Found 4 players for Cloud9.",
		Table:    "player_name | kills\nzellsis | 480\n",
		RowCount: 25,
	})

	assert.Contains(t, prompt, "Team: Cloud9")
	assert.Contains(t, prompt, "zellsis | 480")
	assert.Contains(t, prompt, "Found 4 players")
	assert.Contains(t, prompt, "Only the first 20 rows are shown")
}

func TestBuildReportPrompt(t *testing.T) {
	t.Run("with insights", func(t *testing.T) {
		prompt := BuildReportPrompt(ReportContext{
			Team:       "Cloud9",
			NumMatches: 10,
			Data:       "### Maps\n- Haven 58%\n",
			Insights:   []Insight{{Question: "Best map?", Answer: "Haven."}},
		})
		assert.Contains(t, prompt, "last 10 matches")
		assert.Contains(t, prompt, "Q: Best map?\nA: Haven.")
		assert.Contains(t, prompt, "## AI Assistant Insights")
	})

	t.Run("without insights", func(t *testing.T) {
		prompt := BuildReportPrompt(ReportContext{Team: "Cloud9", NumMatches: 5})
		assert.False(t, strings.Contains(prompt, "Analyst Questions"))
		assert.NotContains(t, prompt, "AI Assistant Insights")
	})
}

func TestSystemMessages(t *testing.T) {
	assert.NotEmpty(t, SQLProposalSystemMessage())
	assert.NotEmpty(t, InterpretationSystemMessage())
	assert.NotEmpty(t, ReportSystemMessage())
}
