package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) SecurityEvent {
	t.Helper()
	var raw string
	for _, f := range entry.Context {
		if f.Key == "event_json" {
			raw = f.String
		}
	}
	require.NotEmpty(t, raw)

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	ctx := WithClientIP(context.Background(), "192.168.1.100")
	auditor.LogInjectionAttempt(ctx, "session-1", SQLInjectionDetails{
		ParamName:   "team_name",
		ParamValue:  "x' OR '1'='1",
		Fingerprint: "s&sos",
	})

	entries := recorded.All()
	require.Len(t, entries, 1)
	entry := entries[0]

	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "security_audit", entry.LoggerName)
	assert.Equal(t, "SQL injection attempt detected", entry.Message)

	event := decodeEvent(t, entry)
	assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
	assert.Equal(t, "session-1", event.SessionID)
	assert.Equal(t, "192.168.1.100", event.ClientIP)
	assert.Equal(t, "critical", event.Severity)
	assert.NotEmpty(t, event.EventID)
}

func TestLogInjectionAttempt_TruncatesValue(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInjectionAttempt(context.Background(), "", SQLInjectionDetails{
		ParamName:  "team_name",
		ParamValue: strings.Repeat("' OR 1=1 ", 100),
	})

	event := decodeEvent(t, recorded.All()[0])
	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.LessOrEqual(t, len(details["param_value"].(string)), 203)
}

func TestLogProposalRejected_SanitizesSQL(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogProposalRejected(context.Background(), "s", ProposalRejectedDetails{
		Relation: "v_team_map_stats",
		Reason:   "identifier not in schema catalog",
		SQL:      "SELECT * FROM v_team_map_stats WHERE team_name = 'Cloud9'",
	})

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	event := decodeEvent(t, entries[0])
	assert.Equal(t, EventProposalRejected, event.EventType)
	details := event.Details.(map[string]any)
	assert.NotContains(t, details["sql"], "Cloud9")
}

func TestLogQueryExecution(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogQueryExecution(context.Background(), "s", "series", 12, 40*time.Millisecond)

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "info", decodeEvent(t, entries[0]).Severity)
}

func TestClientIPFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", ClientIPFromContext(context.Background()))
}
