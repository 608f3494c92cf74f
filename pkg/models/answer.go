package models

import (
	"time"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
)

// ExecutionResult is the capped result set of one query.
// Values keep the precision the database returned.
type ExecutionResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"data"`
	RowCount  int              `json:"count"`
	Truncated bool             `json:"truncated"`
	// TotalRows is the uncapped row count when Truncated and the count query succeeded.
	TotalRows *int64 `json:"total_rows,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Answer is the response to one question. Error failures still produce an
// Interpretation that explains what went wrong.
type Answer struct {
	Question       string           `json:"question"`
	Team           *string          `json:"team"`
	Interpretation string           `json:"interpretation"`
	SQL            *string          `json:"sql,omitempty"`
	Results        *ExecutionResult `json:"results,omitempty"`
	Error          apperrors.Kind   `json:"error,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	SessionID      string           `json:"session_id,omitempty"`
}

// ConversationTurn is one question/answer pair in a session.
// Relation is empty when the question did not resolve.
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    Answer    `json:"answer"`
	Relation  string    `json:"relation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SuggestionSet is the follow-up questions offered for a team.
type SuggestionSet struct {
	TeamFilter  *string  `json:"team_name,omitempty"`
	Suggestions []string `json:"suggestions"`
}

// ChatInsight is a question/answer pair the client forwards into a report.
type ChatInsight struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
