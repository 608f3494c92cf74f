// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a caller-supplied value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventProposalRejected is logged when LLM-proposed SQL fails revalidation.
	EventProposalRejected SecurityEventType = "sql_proposal_rejected"
	// EventQueryExecution is logged for every executed question (can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// ProposalRejectedDetails describes LLM-proposed SQL that was discarded.
type ProposalRejectedDetails struct {
	Relation string `json:"relation"`
	Reason   string `json:"reason"`
	SQL      string `json:"sql"` // sanitized
}

type clientIPKey struct{}

// WithClientIP stores the caller's address for events logged further down the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, sessionID, severity string, details any) (SecurityEvent, string) {
	event := SecurityEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: sessionID,
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return event, string(eventJSON)
}

// LogInjectionAttempt records a caller value that libinjection flagged.
// This is logged at ERROR level with "critical" severity for immediate alerting.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, sessionID, audit.SQLInjectionDetails{
//	    ParamName:   "team_name",
//	    ParamValue:  "x' OR '1'='1",
//	    Fingerprint: "s&sos",
//	})
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, sessionID string, details SQLInjectionDetails) {
	details.ParamValue = logging.TruncateString(details.ParamValue, logging.MaxQueryLogLength)
	event, eventJSON := a.event(ctx, EventSQLInjectionAttempt, sessionID, "critical", details)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", eventJSON),
		zap.String("event_id", event.EventID.String()),
		zap.String("session_id", sessionID),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogProposalRejected records LLM-proposed SQL that failed revalidation.
// Logged at WARN: a rejected proposal is usually a model mistake, not an attack.
func (a *SecurityAuditor) LogProposalRejected(ctx context.Context, sessionID string, details ProposalRejectedDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	event, eventJSON := a.event(ctx, EventProposalRejected, sessionID, "warning", details)

	a.logger.Warn("LLM SQL proposal rejected",
		zap.String("event_json", eventJSON),
		zap.String("event_id", event.EventID.String()),
		zap.String("session_id", sessionID),
		zap.String("relation", details.Relation),
		zap.String("reason", details.Reason),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogQueryExecution records an executed question for the audit trail.
// This is logged at INFO level.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, sessionID, relation string, rowCount int, elapsed time.Duration) {
	details := map[string]any{
		"relation":   relation,
		"row_count":  rowCount,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	event, eventJSON := a.event(ctx, EventQueryExecution, sessionID, "info", details)

	a.logger.Info("Query executed",
		zap.String("event_json", eventJSON),
		zap.String("event_id", event.EventID.String()),
		zap.String("session_id", sessionID),
		zap.String("relation", relation),
		zap.Int("row_count", rowCount),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}
