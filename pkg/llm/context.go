package llm

import "context"

type contextKey string

const purposeContextKey contextKey = "llm_purpose"

// WithPurpose tags the context with what an LLM call is for ("propose_sql",
// "interpret", "report"). The tag labels metrics and log lines.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeContextKey, purpose)
}

// PurposeFrom returns the purpose tag, or "unspecified".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeContextKey).(string); ok && p != "" {
		return p
	}
	return "unspecified"
}
