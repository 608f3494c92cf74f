package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownTeam    = errors.New("unknown team")
	ErrCatalogInvalid = errors.New("schema catalog invalid")
)

// Kind classifies a failure surfaced to callers in Answer.error.
// The string value is part of the HTTP contract.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindInputTooLong       Kind = "input_too_long"
	KindUnknownTeam        Kind = "unknown_team"
	KindUnresolvableIntent Kind = "unresolvable_intent"
	KindAmbiguousIntent    Kind = "ambiguous_intent"
	KindExecutionFailed    Kind = "execution_failed"
	KindQueryTimeout       Kind = "query_timeout"
	KindGenerationTimeout  Kind = "generation_timeout"
	KindRateLimited        Kind = "rate_limited"
	KindQuotaExceeded      Kind = "quota_exceeded"
)

// Error is a classified failure. Message is safe to show to an end user;
// Cause holds the internal error and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error that keeps the internal cause for logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// UserMessage returns the user-facing message for err. Unclassified errors
// never leak their text.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if appErr != nil {
		return DefaultMessage(appErr.Kind)
	}
	return DefaultMessage(KindExecutionFailed)
}

// DefaultMessage is the canned explanation for each kind.
func DefaultMessage(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "Please enter a question."
	case KindInputTooLong:
		return "That question is too long. Please shorten it and ask again."
	case KindUnknownTeam:
		return "That team isn't in the match database. Pick a team from the list."
	case KindUnresolvableIntent:
		return "I don't understand the question in terms of the available data. Try asking about maps, agents, players, pistol rounds, weapons, round wins or match results."
	case KindAmbiguousIntent:
		return "That question could mean more than one thing. Please be more specific."
	case KindQueryTimeout:
		return "That query took too long to run. Try narrowing it down."
	case KindGenerationTimeout:
		return "The analysis service took too long to respond. Please retry."
	case KindRateLimited:
		return "The analysis service is busy right now. Please wait a moment before asking again."
	case KindQuotaExceeded:
		return "The analysis service has reached its usage limit. Try again later."
	default:
		return "Something went wrong while running that query. Please retry."
	}
}
