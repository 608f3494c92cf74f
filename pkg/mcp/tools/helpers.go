package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// maxNumMatches bounds the num_matches argument before it reaches the service.
const maxNumMatches = 100

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(val)
}

// getOptionalInt extracts an optional integer argument. JSON numbers arrive
// as float64; fractional values are truncated.
func getOptionalInt(req mcp.CallToolRequest, key string) (int, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	switch val := args[key].(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	default:
		return 0, false
	}
}

// numMatchesArg reads num_matches, defaulting to 0 (service default) and
// clamping to maxNumMatches.
func numMatchesArg(req mcp.CallToolRequest) int {
	n, ok := getOptionalInt(req, "num_matches")
	if !ok || n < 0 {
		return 0
	}
	return min(n, maxNumMatches)
}

// jsonResult marshals v into a text tool result.
func jsonResult(name string, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", name, err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
