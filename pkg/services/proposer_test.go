package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/llm"
)

func newTestProposer(t *testing.T, client llm.LLMClient) (*SQLProposer, *observer.ObservedLogs) {
	t.Helper()
	cat, err := catalog.LoadDefault()
	require.NoError(t, err)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return NewSQLProposer(cat, client, audit.NewSecurityAuditor(logger), logger), logs
}

func TestPropose_AcceptsValidRefinement(t *testing.T) {
	mock := llm.NewMockLLMClient(`{"sql": "SELECT map, win_rate FROM v_team_map_stats WHERE team_name = {{team_name}} AND map = {{f_map}} LIMIT 1", "reasoning": "added the map for context"}`)
	proposer, _ := newTestProposer(t, mock)
	intent := planFor(t, "What is Cloud9's win rate on Haven?")
	planned := intent.GeneratedSQL

	refined, err := proposer.Propose(context.Background(), "s1", intent)
	require.NoError(t, err)

	require.NotSame(t, intent, refined)
	assert.Contains(t, refined.GeneratedSQL, "team_name = $1 AND map = $2")
	assert.NotContains(t, refined.GeneratedSQL, "{{")
	assert.Equal(t, []any{"Cloud9", "Haven"}, refined.Parameters)
	assert.Equal(t, intent.ResolvedRelation, refined.ResolvedRelation)
	assert.Equal(t, []string{"map", "win_rate"}, refined.ResolvedColumns)
	assert.Equal(t, []string{"win_rate"}, intent.ResolvedColumns)
	assert.Equal(t, planned, intent.GeneratedSQL, "the planned intent must not change")

	require.Len(t, mock.Prompts(), 1)
	assert.Contains(t, mock.Prompts()[0], "{{team_name}}, {{f_map}}")
	assert.NotContains(t, mock.Prompts()[0], "'Cloud9'")
}

func TestPropose_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		reason     string
		audited    bool
	}{
		{
			name:       "not json",
			completion: "Sure! Here is your query.",
			reason:     rejectUnparseable,
		},
		{
			name:       "write statement",
			completion: `{"sql": "DELETE FROM v_team_map_stats WHERE team_name = {{team_name}}"}`,
			reason:     rejectNotReadOnly,
			audited:    true,
		},
		{
			name:       "stacked statements",
			completion: `{"sql": "SELECT map FROM v_team_map_stats; DROP TABLE series"}`,
			reason:     rejectNotReadOnly,
			audited:    true,
		},
		{
			name:       "other relation",
			completion: `{"sql": "SELECT player_name FROM v_player_stats WHERE team_name = {{team_name}}"}`,
			reason:     rejectUnknownIdentifier,
			audited:    true,
		},
		{
			name:       "hallucinated column",
			completion: `{"sql": "SELECT clutch_rate FROM v_team_map_stats WHERE team_name = {{team_name}}"}`,
			reason:     rejectUnknownIdentifier,
			audited:    true,
		},
		{
			name:       "invented parameter",
			completion: `{"sql": "SELECT win_rate FROM v_team_map_stats WHERE team_name = {{team}}"}`,
			reason:     rejectUnknownParameter,
			audited:    true,
		},
		{
			name:       "bound value as literal",
			completion: `{"sql": "SELECT win_rate FROM v_team_map_stats WHERE team_name = 'Cloud9' AND map = {{f_map}}"}`,
			reason:     rejectLiteralValue,
			audited:    true,
		},
		{
			name:       "subquery reads a relation named like an outer alias",
			completion: `{"sql": "SELECT map, win_rate, 1 AS tables, (SELECT count(*) FROM information_schema.tables) AS n FROM v_team_map_stats AS information_schema WHERE team_name = {{team_name}} AND map = {{f_map}}"}`,
			reason:     rejectUnknownIdentifier,
			audited:    true,
		},
		{
			name:       "qualified relation",
			completion: `{"sql": "SELECT win_rate FROM main.v_team_map_stats WHERE team_name = {{team_name}} AND map = {{f_map}}"}`,
			reason:     rejectUnknownIdentifier,
			audited:    true,
		},
		{
			name:       "comma join to a system table",
			completion: `{"sql": "SELECT map, win_rate FROM v_team_map_stats, duckdb_settings WHERE team_name = {{team_name}} AND map = {{f_map}}"}`,
			reason:     rejectUnknownIdentifier,
			audited:    true,
		},
		{
			name:       "team filter dropped",
			completion: `{"sql": "SELECT team_name, map, win_rate FROM v_team_map_stats WHERE map = {{f_map}}"}`,
			reason:     rejectDroppedParameter,
			audited:    true,
		},
		{
			name:       "map filter dropped",
			completion: `{"sql": "SELECT map, win_rate FROM v_team_map_stats WHERE team_name = {{team_name}}"}`,
			reason:     rejectDroppedParameter,
			audited:    true,
		},
		{
			name:       "star projection",
			completion: `{"sql": "SELECT * FROM v_team_map_stats WHERE team_name = {{team_name}}"}`,
			reason:     rejectColumns,
			audited:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposer, logs := newTestProposer(t, llm.NewMockLLMClient(tt.completion))
			intent := planFor(t, "What is Cloud9's win rate on Haven?")

			got, err := proposer.Propose(context.Background(), "s1", intent)
			require.NoError(t, err)
			assert.Same(t, intent, got)

			discarded := logs.FilterMessage("Discarded proposed SQL, keeping planned statement").All()
			require.Len(t, discarded, 1)
			assert.Equal(t, tt.reason, discarded[0].ContextMap()["reason"])

			audited := logs.FilterMessage("LLM SQL proposal rejected").Len()
			if tt.audited {
				assert.Equal(t, 1, audited)
			} else {
				assert.Zero(t, audited)
			}
		})
	}
}

func TestPropose_LLMFailures(t *testing.T) {
	intent := planFor(t, "What is Cloud9's win rate on Haven?")

	t.Run("rate limit fails the request", func(t *testing.T) {
		mock := &llm.MockLLMClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
				return nil, errors.New("rate limit exceeded, too many requests")
			},
		}
		proposer, _ := newTestProposer(t, mock)

		got, err := proposer.Propose(context.Background(), "s1", intent)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
	})

	t.Run("other failures keep the plan", func(t *testing.T) {
		mock := &llm.MockLLMClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
				return nil, llm.NewError(llm.ErrorTypeUnavailable, "llm provider unavailable", false, nil)
			},
		}
		proposer, _ := newTestProposer(t, mock)

		got, err := proposer.Propose(context.Background(), "s1", intent)
		require.NoError(t, err)
		assert.Same(t, intent, got)
	})
}
