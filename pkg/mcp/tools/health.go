package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const healthProbeTimeout = 5 * time.Second

// ConnectionTester checks that the queried database is reachable.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// HealthInfo is the static part of the health tool's answer.
type HealthInfo struct {
	Version string `json:"version"`
	Dialect string `json:"dialect,omitempty"`
	Model   string `json:"model,omitempty"`
}

type healthResult struct {
	Status     string `json:"status"`
	Datasource string `json:"datasource"`
	HealthInfo
}

// RegisterHealthTool adds a health tool that reports build info and whether
// the datasource answers a probe. A nil tester skips the probe.
func RegisterHealthTool(s *server.MCPServer, info HealthInfo, tester ConnectionTester) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Report server version, SQL dialect, model and datasource reachability"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Datasource: "unchecked", HealthInfo: info}
		if tester != nil {
			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			defer cancel()
			if err := tester.TestConnection(probeCtx); err != nil {
				result.Status, result.Datasource = "degraded", "unreachable"
			} else {
				result.Datasource = "connected"
			}
		}
		return jsonResult(result)
	})
}
