package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// PingFunc checks a dependency, e.g. the database pool.
type PingFunc func(ctx context.Context) error

// RegisterHealthTool adds a health check tool to the MCP server. When ping is
// set its outcome is reported as the database status.
func RegisterHealthTool(s *server.MCPServer, version string, ping PingFunc) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}
		if ping != nil {
			res.Database = "ok"
			if err := ping(ctx); err != nil {
				res.Status = "degraded"
				res.Database = "unavailable"
			}
		}

		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(out)), nil
	})
}
