package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
)

// ToolCallLogger writes one structured log entry per MCP tool call.
// Filter values are hashed so entries can be correlated without recording
// the user's data.
type ToolCallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

func NewToolCallLogger(logger *zap.Logger) *ToolCallLogger {
	return &ToolCallLogger{logger: logger.Named("mcp_calls")}
}

// Hooks returns mcp-go Hooks that capture tool call events.
func (l *ToolCallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(l.beforeCallTool)
	hooks.AddAfterCallTool(l.afterCallTool)
	hooks.AddOnError(l.onError)
	return hooks
}

func (l *ToolCallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	l.startTimes.Store(id, time.Now())
}

func (l *ToolCallLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := l.fields(ctx, id, req)
	fields = append(fields, summarizeResult(result)...)

	if result != nil && result.IsError {
		l.logger.Info("MCP tool call rejected", fields...)
		return
	}
	l.logger.Info("MCP tool call", fields...)
}

func (l *ToolCallLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := l.fields(ctx, id, req)
	fields = append(fields, zap.Error(err))
	l.logger.Warn("MCP tool call failed", fields...)
}

func (l *ToolCallLogger) fields(ctx context.Context, id any, req *mcplib.CallToolRequest) []zap.Field {
	start := time.Now()
	if v, ok := l.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}

	args := req.GetArguments()
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("user_id", auth.UserIDFromContext(ctx)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if table, ok := args["table"].(string); ok {
		fields = append(fields, zap.String("table", table))
	}
	if filters, ok := args["filters"].([]any); ok {
		fields = append(fields, zap.Strings("filters", describeFilters(filters)))
	}
	return fields
}

// describeFilters renders filters as "field operator sha256:<prefix>".
func describeFilters(filters []any) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%v %v %s", m["field"], m["operator"], hashValue(m["value"])))
	}
	return out
}

func hashValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

func summarizeResult(result *mcplib.CallToolResult) []zap.Field {
	if result == nil {
		return nil
	}
	fields := []zap.Field{zap.Bool("is_error", result.IsError)}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var probe struct {
			RowCount *int   `json:"row_count"`
			Code     string `json:"code"`
		}
		if json.Unmarshal([]byte(tc.Text), &probe) != nil {
			break
		}
		if probe.RowCount != nil {
			fields = append(fields, zap.Int("row_count", *probe.RowCount))
		}
		if probe.Code != "" {
			fields = append(fields, zap.String("code", probe.Code))
		}
		break
	}
	return fields
}
