package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can act on are returned as successful tool results so
// the client model sees the details instead of a protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors such as unknown teams or bad parameters.
// System failures should still be returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context,
// for example the list of valid team names.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// classifiedErrorResult turns a classified service error into a tool error
// result. ok is false for unclassified errors, which should be returned as
// Go errors.
func classifiedErrorResult(err error) (*mcp.CallToolResult, bool) {
	if errors.Is(err, context.Canceled) {
		return nil, false
	}
	kind := apperrors.KindOf(err)
	if kind == "" || kind == apperrors.KindExecutionFailed {
		return nil, false
	}
	return NewErrorResult(string(kind), apperrors.UserMessage(err)), true
}
