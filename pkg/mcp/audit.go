package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/logging"
)

// maxAuditArgument bounds each string argument written to the audit log.
const maxAuditArgument = 500

// AuditLogger writes one structured log line per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime, _ := a.loadAndDeleteStart(id)

	fields := a.eventFields(ctx, req, time.Since(startTime))
	fields = append(fields, zap.Bool("was_successful", result != nil && !result.IsError))
	if result != nil {
		fields = append(fields, zap.Int("result_items", len(result.Content)))
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime, _ := a.loadAndDeleteStart(id)
	fields := a.eventFields(ctx, req, time.Since(startTime))
	fields = append(fields,
		zap.Bool("was_successful", false),
		zap.String("error", logging.SanitizeError(err)),
	)
	a.logger.Warn("MCP tool call error", fields...)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

func (a *AuditLogger) eventFields(ctx context.Context, req *mcplib.CallToolRequest, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Any("request_params", sanitizeParams(req.Params.Arguments)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if ip := audit.ClientIPFromContext(ctx); ip != "" {
		fields = append(fields, zap.String("client_ip", ip))
	}
	return fields
}

// sanitizeParams truncates long string arguments before they are logged.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			sanitized[k] = logging.TruncateString(s, maxAuditArgument)
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
