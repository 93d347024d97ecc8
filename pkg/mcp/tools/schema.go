package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// RegisterSchemaTool registers get_schema, which returns the schema text the
// pipeline prompts are built from.
func RegisterSchemaTool(s *server.MCPServer, introspector datasource.SchemaIntrospector) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(
			"Get the tables and columns of the connected database, "+
				"plus the known values of low-cardinality text columns.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := introspector.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to discover schema: %w", err)
		}
		return mcp.NewToolResultText(prompts.FormatSchemaWithValues(schema)), nil
	})
}
