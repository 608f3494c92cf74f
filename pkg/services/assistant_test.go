package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics/duckdb"
	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/repositories"
	"github.com/vlrscout/scout-engine/pkg/testhelpers"
)

type assistantFixture struct {
	assistant     *ScoutingAssistant
	conversations *ConversationStore
	logs          *observer.ObservedLogs
}

// newFixtureAssistant wires an assistant over the DuckDB match fixture.
// A non-nil client enables LLM SQL refinement.
func newFixtureAssistant(t *testing.T, client llm.LLMClient, extra ...string) *assistantFixture {
	t.Helper()

	path := testhelpers.NewDuckDBFixture(t, extra...)
	exec, err := duckdb.Open(context.Background(), path+"?access_mode=READ_ONLY", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })

	cat, err := catalog.LoadDefault()
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := audit.NewSecurityAuditor(logger)
	conversations := NewConversationStore(ConversationConfig{})

	deps := AssistantDeps{
		Planner:       NewQueryPlanner(cat, PlannerConfig{}),
		Executor:      exec,
		Interpreter:   NewResultInterpreter(cat, nil, InterpreterConfig{RowCap: 500}, logger),
		Suggestions:   NewSuggestionGenerator(cat),
		Conversations: conversations,
		Teams:         NewTeamDirectory(repositories.NewScoutingRepository(exec), time.Minute, logger),
		Auditor:       auditor,
	}
	cfg := AssistantConfig{RowCap: 500, StatementTimeout: 5 * time.Second}
	if client != nil {
		deps.Proposer = NewSQLProposer(cat, client, auditor, logger)
		cfg.LLMSQL = true
	}

	return &assistantFixture{
		assistant:     NewScoutingAssistant(deps, cfg, logger),
		conversations: conversations,
		logs:          logs,
	}
}

func TestAsk_WinRateOnMap(t *testing.T) {
	f := newFixtureAssistant(t, nil)

	answer := f.assistant.Ask(context.Background(), AskRequest{
		Question: "What is Cloud9's win rate on Haven?",
		TeamName: strPtr("cloud9"),
	})

	assert.Empty(t, answer.Error)
	assert.Equal(t, "Cloud9's win rate on Haven is 58%.", answer.Interpretation)
	require.NotNil(t, answer.Team)
	assert.Equal(t, "Cloud9", *answer.Team)
	assert.Nil(t, answer.SQL)
	require.NotNil(t, answer.Results)
	assert.Equal(t, 1, answer.Results.RowCount)
	assert.InDelta(t, 58.0, answer.Results.Rows[0]["win_rate"], 0.001)

	assert.True(t, ValidSessionID(answer.SessionID))
	assert.Equal(t, 1, f.conversations.Len(answer.SessionID))
	assert.Equal(t, 1, f.logs.FilterMessage("Query executed").Len())
}

func TestAsk_ExposeSQL(t *testing.T) {
	f := newFixtureAssistant(t, nil)
	f.assistant.cfg.ExposeSQL = true

	answer := f.assistant.Ask(context.Background(), AskRequest{
		Question: "What is Cloud9's win rate on Haven?",
		TeamName: strPtr("cloud9"),
	})

	assert.Empty(t, answer.Error)
	require.NotNil(t, answer.SQL)
	assert.Contains(t, *answer.SQL, "team_name = $1 AND map = $2")
	assert.NotContains(t, *answer.SQL, "{{")
}

func TestAsk_RejectedInput(t *testing.T) {
	f := newFixtureAssistant(t, nil)

	t.Run("empty question", func(t *testing.T) {
		answer := f.assistant.Ask(context.Background(), AskRequest{Question: "   ", SessionID: "empty"})
		assert.Equal(t, apperrors.KindInvalidInput, answer.Error)
		assert.Nil(t, answer.SQL)
		assert.Nil(t, answer.Results)
		assert.NotEmpty(t, answer.Interpretation)
		assert.Zero(t, f.conversations.Len("empty"))
	})

	t.Run("unknown team", func(t *testing.T) {
		answer := f.assistant.Ask(context.Background(), AskRequest{
			Question:  "What maps does this team play?",
			TeamName:  strPtr("NotARealTeam"),
			SessionID: "unknown",
		})
		assert.Equal(t, apperrors.KindUnknownTeam, answer.Error)
		assert.Contains(t, answer.Interpretation, "NotARealTeam")
		assert.Equal(t, answer.Interpretation, answer.ErrorMessage)
		assert.Nil(t, answer.SQL)
		assert.Nil(t, answer.Results)
		assert.Equal(t, 1, f.conversations.Len("unknown"))
	})

	t.Run("injection in team filter is audited", func(t *testing.T) {
		answer := f.assistant.Ask(context.Background(), AskRequest{
			Question: "What maps does this team play?",
			TeamName: strPtr("' OR 1=1--"),
		})
		assert.Equal(t, apperrors.KindUnknownTeam, answer.Error)
		assert.Nil(t, answer.SQL)
		assert.Equal(t, 1, f.logs.FilterMessage("SQL injection attempt detected").Len())
	})
}

func TestAsk_TruncatesLargeResults(t *testing.T) {
	f := newFixtureAssistant(t, nil,
		`INSERT INTO v_player_stats (team_name, player_name, games, kills, deaths, assists, kd_ratio)
			SELECT 'Bulk', 'p' || CAST(i AS VARCHAR), 1, 1, 1, 1, 1.0 FROM range(10000) t(i)`)

	answer := f.assistant.Ask(context.Background(), AskRequest{Question: "Who are the fraggers across all teams?"})

	require.Empty(t, answer.Error, answer.Interpretation)
	require.NotNil(t, answer.Results)
	assert.True(t, answer.Results.Truncated)
	assert.Equal(t, 500, answer.Results.RowCount)
	assert.Len(t, answer.Results.Rows, 500)
	require.NotNil(t, answer.Results.TotalRows)
	assert.EqualValues(t, 10008, *answer.Results.TotalRows)
	assert.Contains(t, answer.Interpretation, "Showing the first 500 of 10008 rows (9508 more not shown).")
}

func TestAsk_FollowUpUsesConversation(t *testing.T) {
	f := newFixtureAssistant(t, nil)
	ctx := context.Background()

	first := f.assistant.Ask(ctx, AskRequest{Question: "What is Cloud9's win rate on each map?", SessionID: "s-follow"})
	require.Empty(t, first.Error, first.Interpretation)

	second := f.assistant.Ask(ctx, AskRequest{Question: "What about Sentinels?", SessionID: "s-follow"})
	require.Empty(t, second.Error, second.Interpretation)
	require.NotNil(t, second.Team)
	assert.Equal(t, "Sentinels", *second.Team)
	assert.Equal(t, 3, second.Results.RowCount)
	assert.Equal(t, 2, f.conversations.Len("s-follow"))

	// Without history the same question does not resolve.
	fresh := f.assistant.Ask(ctx, AskRequest{Question: "What about Sentinels?"})
	assert.Equal(t, apperrors.KindUnresolvableIntent, fresh.Error)
}

func TestAsk_ProposerFailures(t *testing.T) {
	t.Run("rate limit fails the question", func(t *testing.T) {
		mock := &llm.MockLLMClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
				return nil, errors.New("429 Too Many Requests: rate limit reached")
			},
		}
		f := newFixtureAssistant(t, mock)

		answer := f.assistant.Ask(context.Background(), AskRequest{Question: "What is Cloud9's win rate on Haven?"})
		assert.Equal(t, apperrors.KindRateLimited, answer.Error)
		assert.Nil(t, answer.SQL)
		assert.Nil(t, answer.Results)
	})

	t.Run("rejected proposal keeps the plan", func(t *testing.T) {
		f := newFixtureAssistant(t, llm.NewMockLLMClient(`{"sql": "DELETE FROM v_team_map_stats"}`))

		answer := f.assistant.Ask(context.Background(), AskRequest{Question: "What is Cloud9's win rate on Haven?"})
		assert.Empty(t, answer.Error)
		assert.Equal(t, "Cloud9's win rate on Haven is 58%.", answer.Interpretation)
		assert.Equal(t, 1, f.logs.FilterMessage("LLM SQL proposal rejected").Len())
	})

	unsafe := []struct {
		name       string
		completion string
	}{
		{
			name:       "team filter dropped",
			completion: `{"sql": "SELECT win_rate FROM v_team_map_stats WHERE map = {{f_map}} ORDER BY win_rate DESC"}`,
		},
		{
			name:       "subquery over a system schema",
			completion: `{"sql": "SELECT win_rate FROM (SELECT table_name AS win_rate FROM information_schema.tables) AS information_schema WHERE {{team_name}} = {{team_name}} AND {{f_map}} = {{f_map}}"}`,
		},
	}
	for _, tt := range unsafe {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureAssistant(t, llm.NewMockLLMClient(tt.completion))
			f.assistant.cfg.ExposeSQL = true

			answer := f.assistant.Ask(context.Background(), AskRequest{Question: "What is Cloud9's win rate on Haven?"})
			assert.Empty(t, answer.Error)
			assert.Equal(t, "Cloud9's win rate on Haven is 58%.", answer.Interpretation)
			require.NotNil(t, answer.SQL)
			assert.Contains(t, *answer.SQL, "team_name = $1 AND map = $2")
			require.NotNil(t, answer.Results)
			assert.Equal(t, 1, answer.Results.RowCount)
			assert.Equal(t, 1, f.logs.FilterMessage("LLM SQL proposal rejected").Len())
		})
	}
}

func TestSuggest(t *testing.T) {
	f := newFixtureAssistant(t, nil)
	ctx := context.Background()

	set, err := f.assistant.Suggest(ctx, strPtr("sentinels"), "")
	require.NoError(t, err)
	require.NotNil(t, set.TeamFilter)
	assert.Equal(t, "Sentinels", *set.TeamFilter)
	assert.NotEmpty(t, set.Suggestions)
	assert.LessOrEqual(t, len(set.Suggestions), MaxSuggestions)

	_, err = f.assistant.Suggest(ctx, strPtr("NotARealTeam"), "")
	assert.Equal(t, apperrors.KindUnknownTeam, apperrors.KindOf(err))

	general, err := f.assistant.Suggest(ctx, nil, "")
	require.NoError(t, err)
	assert.Nil(t, general.TeamFilter)
	assert.Len(t, general.Suggestions, MaxSuggestions)
}
