package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// requireText reads a required string argument and trims it. A missing or
// blank value yields an invalid_parameters result for the caller to return.
func requireText(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	value, err := req.RequireString(key)
	if err != nil {
		return "", NewErrorResult("invalid_parameters", err.Error())
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", NewErrorResult("invalid_parameters", key+" cannot be empty")
	}
	return value, nil
}

// optionalText reads an optional string argument, trimmed.
func optionalText(req mcp.CallToolRequest, key string) string {
	return strings.TrimSpace(req.GetString(key, ""))
}
