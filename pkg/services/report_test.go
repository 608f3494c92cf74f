package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/models"
)

func sevenInsights() []models.ChatInsight {
	insights := make([]models.ChatInsight, 7)
	for i := range insights {
		insights[i] = models.ChatInsight{
			Question: fmt.Sprintf("question %d", i+1),
			Answer:   fmt.Sprintf("answer %d", i+1),
		}
	}
	return insights
}

func TestReport_Template(t *testing.T) {
	svc := NewReportService(newFixtureScouting(t), nil, zap.NewNop())

	report, err := svc.Generate(context.Background(), ReportRequest{
		TeamName:   "cloud9",
		NumMatches: 10,
		Insights:   sevenInsights(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Cloud9", report.Team)
	assert.Equal(t, ReportSourceTemplate, report.Source)
	md := report.Report
	assert.Contains(t, md, "# Scouting Report: CLOUD9")
	assert.Contains(t, md, "**Recent Form:** 2-2 (50% win rate over 4 series)")
	assert.Contains(t, md, "- Haven: 58% WR (29/50 games), avg round diff +2.1")
	assert.Contains(t, md, "### HIGH Priority")
	assert.Contains(t, md, "- **BAN** Haven (58% WR) - their best map")
	assert.Contains(t, md, "- **PICK** Ascent (0% WR) - their worst map")
	assert.Contains(t, md, "Focus on winning **attack pistols**")

	assert.Contains(t, md, "## AI Assistant Insights")
	assert.Contains(t, md, "**Q: question 3**\nanswer 3")
	assert.Contains(t, md, "**Q: question 7**\nanswer 7")
	assert.NotContains(t, md, "question 2")
}

func TestReport_NoInsightsSection(t *testing.T) {
	svc := NewReportService(newFixtureScouting(t), nil, zap.NewNop())

	report, err := svc.Generate(context.Background(), ReportRequest{TeamName: "Fnatic"})
	require.NoError(t, err)
	assert.NotContains(t, report.Report, "AI Assistant Insights")
}

func TestReport_LLM(t *testing.T) {
	mock := llm.NewMockLLMClient("<think>plan</think>\n## Executive Summary\nCloud9 lean on Haven.")
	svc := NewReportService(newFixtureScouting(t), mock, zap.NewNop())

	report, err := svc.Generate(context.Background(), ReportRequest{TeamName: "Cloud9", Insights: sevenInsights()})
	require.NoError(t, err)
	assert.Equal(t, ReportSourceLLM, report.Source)
	assert.Equal(t, "## Executive Summary\nCloud9 lean on Haven.", report.Report)

	require.Len(t, mock.Prompts(), 1)
	prompt := mock.Prompts()[0]
	assert.Contains(t, prompt, "Q: question 7")
	assert.NotContains(t, prompt, "Q: question 2")
	assert.Contains(t, prompt, "## AI Assistant Insights")
	assert.Contains(t, prompt, "Poor performance on Lotus")
}

func TestReport_LLMFailureFallsBack(t *testing.T) {
	for _, failure := range []error{
		errors.New("429 Too Many Requests: rate limit reached"),
		context.DeadlineExceeded,
		errors.New("connection refused"),
	} {
		mock := &llm.MockLLMClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
				return nil, failure
			},
		}
		svc := NewReportService(newFixtureScouting(t), mock, zap.NewNop())

		report, err := svc.Generate(context.Background(), ReportRequest{TeamName: "Cloud9"})
		require.NoError(t, err, failure.Error())
		assert.Equal(t, ReportSourceTemplate, report.Source)
		assert.Contains(t, report.Report, "# Scouting Report: CLOUD9")
	}
}

func TestReport_UnknownTeam(t *testing.T) {
	svc := NewReportService(newFixtureScouting(t), nil, zap.NewNop())

	_, err := svc.Generate(context.Background(), ReportRequest{TeamName: "NotARealTeam"})
	assert.Equal(t, apperrors.KindUnknownTeam, apperrors.KindOf(err))
}
