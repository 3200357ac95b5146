package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/llm"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

// QueryToolDeps holds what the query tools need.
type QueryToolDeps struct {
	Registry *schema.Registry
	Runner   llm.QueryRunner
	Logger   *zap.Logger
}

// RegisterQueryTools adds one query_<module> tool per registry module. The
// tools share their JSON schema and argument handling with the chat tools;
// the user id comes from the authenticated request, never from arguments.
func RegisterQueryTools(s *server.MCPServer, deps *QueryToolDeps) {
	for _, def := range llm.QueryTools(deps.Registry) {
		schemaJSON, err := json.Marshal(def.Parameters)
		if err != nil {
			deps.Logger.Error("Skipping MCP tool with unencodable schema",
				zap.String("tool", def.Name),
				zap.Error(err))
			continue
		}
		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, schemaJSON)
		s.AddTool(tool, queryHandler(deps))
	}
}

func queryHandler(deps *QueryToolDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := auth.UserIDFromContext(ctx)
		if userID == "" {
			return NewErrorResult("unauthorized", "no authenticated user for this request"), nil
		}

		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return NewErrorResult("invalid_arguments", err.Error()), nil
		}

		executor := llm.NewQueryToolExecutor(deps.Registry, deps.Runner, userID, deps.Logger)
		out, err := executor.ExecuteTool(ctx, req.Params.Name, string(args))
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", req.Params.Name, err)
		}
		return fromExecutorOutput(out), nil
	}
}
