package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
)

func TestToolCallAuditor_Hooks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	auditor := NewToolCallAuditor(zap.New(core))

	s := NewServer("test-server", "1.0.0", auditor.Hooks(), zap.NewNop())
	s.RegisterTool(mcplib.NewTool("audit_ok"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultText("fine"), nil
	})
	s.RegisterTool(mcplib.NewTool("audit_fail"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return nil, errors.New("session store unavailable")
	})

	okBefore := testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("audit_ok", toolStatusOK))
	failBefore := testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("audit_fail", toolStatusError))

	ctx := context.Background()
	s.MCP().HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"audit_ok","arguments":{"sql":"SELECT * FROM t WHERE a = 'x'"}}}`))
	s.MCP().HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"audit_fail"}}`))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("audit_ok", toolStatusOK)))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("audit_fail", toolStatusError)))

	calls := logs.FilterMessage("MCP tool call").All()
	require.Len(t, calls, 1)
	fields := calls[0].ContextMap()
	assert.Equal(t, "audit_ok", fields["tool"])
	assert.Equal(t, "fine", fields["result"])
	params, ok := fields["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM t WHERE a = '***'", params["sql"])

	failures := logs.FilterMessage("MCP tool call failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "audit_fail", failures[0].ContextMap()["tool"])
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestRedactArgs(t *testing.T) {
	assert.Nil(t, redactArgs(nil))

	got := redactArgs(map[string]any{
		"question":   "How many orders from 'SP'? " + strings.Repeat("a", 20000),
		"thread_id":  "t-1",
		"limit":      100,
		"failed_sql": "SELECT * FROM users WHERE name = 'O''Brien' AND id = 42",
		"api_key":    "sk-1234567890",
		"datasource": map[string]any{"password": "hunter2", "host": "db"},
	})

	question := got["question"].(string)
	assert.True(t, strings.HasPrefix(question, "How many orders from 'SP'?"), "questions keep their literals")
	assert.Len(t, question, maxLoggedArg+len(truncatedMarker))

	assert.Equal(t, "t-1", got["thread_id"])
	assert.Equal(t, 100, got["limit"])
	assert.Equal(t, "SELECT * FROM users WHERE name = '***' AND id = 42", got["failed_sql"])

	key := got["api_key"].(string)
	assert.Regexp(t, `^sha256:[0-9a-f]{16}$`, key)
	assert.Equal(t, key, fingerprint("sk-1234567890"))

	nested, ok := got["datasource"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, fingerprint("hunter2"), nested["password"])
	assert.Equal(t, "db", nested["host"])
}

func TestCarriesSQL(t *testing.T) {
	for key, want := range map[string]bool{
		"sql":          true,
		"SQL":          true,
		"query":        true,
		"failed_sql":   true,
		"last_query":   true,
		"question":     false,
		"thread_id":    false,
		"sql_injected": false,
	} {
		assert.Equal(t, want, carriesSQL(key), key)
	}
}

func TestResultPreview(t *testing.T) {
	assert.Empty(t, resultPreview(nil))
	assert.Empty(t, resultPreview(&mcplib.CallToolResult{}))

	short := mcplib.NewToolResultText(`{"final_answer":"4 orders"}`)
	assert.Equal(t, `{"final_answer":"4 orders"}`, resultPreview(short))

	long := mcplib.NewToolResultText(strings.Repeat("x", 500))
	assert.Equal(t, strings.Repeat("x", maxLoggedResult)+truncatedMarker, resultPreview(long))
}
