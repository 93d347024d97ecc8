package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
)

const (
	toolStatusOK    = "ok"
	toolStatusError = "error"
)

// ToolCallAuditor logs MCP tool calls and counts them per tool and status.
type ToolCallAuditor struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolCallAuditor creates a ToolCallAuditor.
func NewToolCallAuditor(logger *zap.Logger) *ToolCallAuditor {
	return &ToolCallAuditor{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *ToolCallAuditor) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *ToolCallAuditor) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *ToolCallAuditor) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	elapsed := a.elapsed(id)

	status := toolStatusOK
	if result != nil && result.IsError {
		status = toolStatusError
	}
	metrics.MCPToolCallsTotal.WithLabelValues(req.Params.Name, status).Inc()

	a.logger.Info("MCP tool call",
		zap.String("tool", req.Params.Name),
		zap.String("status", status),
		zap.Any("params", redactArgs(req.GetArguments())),
		zap.String("result", resultPreview(result)),
		zap.Duration("elapsed", elapsed))
}

func (a *ToolCallAuditor) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	metrics.MCPToolCallsTotal.WithLabelValues(req.Params.Name, toolStatusError).Inc()

	a.logger.Error("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Any("params", redactArgs(req.GetArguments())),
		zap.Duration("elapsed", a.elapsed(id)),
		zap.Error(err))
}

func (a *ToolCallAuditor) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

const (
	maxLoggedArg    = 10 << 10
	maxLoggedResult = 200
	truncatedMarker = "...[truncated]"
)

var (
	secretKeyPattern  = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|credential)`)
	sqlLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// redactArgs returns a loggable copy of tool arguments. Secrets become
// fingerprints, long strings are clipped and SQL string literals are masked.
func redactArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = redactArg(k, v)
	}
	return out
}

func redactArg(key string, v any) any {
	if secretKeyPattern.MatchString(key) {
		return fingerprint(v)
	}
	switch val := v.(type) {
	case map[string]any:
		return redactArgs(val)
	case string:
		val = clip(val, maxLoggedArg)
		if carriesSQL(key) {
			val = sqlLiteralPattern.ReplaceAllString(val, "'***'")
		}
		return val
	default:
		return v
	}
}

// carriesSQL reports whether an argument name suggests a SQL statement.
func carriesSQL(key string) bool {
	k := strings.ToLower(key)
	return k == "sql" || k == "query" || strings.HasSuffix(k, "_sql") || strings.HasSuffix(k, "_query")
}

// fingerprint lets log lines be correlated without recording the value.
func fingerprint(v any) string {
	sum := sha256.Sum256(fmt.Append(nil, v))
	return "sha256:" + hex.EncodeToString(sum[:8])
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + truncatedMarker
}

// resultPreview returns the start of the first text content block.
func resultPreview(result *mcplib.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return clip(tc.Text, maxLoggedResult)
		}
	}
	return ""
}
