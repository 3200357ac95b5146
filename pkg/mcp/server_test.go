package mcp

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
)

func TestNewServer(t *testing.T) {
	s := NewServer("homebrew-engine", "1.0.0", nil, zap.NewNop())

	require.NotNil(t, s.MCP())
	assert.NotNil(t, s.NewStreamableHTTPServer())
}

func TestToolCallLogger_RecordsCall(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	callLog := NewToolCallLogger(zap.New(core))
	s := NewServer("homebrew-engine", "1.0.0", callLog, zap.NewNop())

	s.RegisterTool(mcplib.NewTool("query_todos"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultText(`{"rows":[],"row_count":0}`), nil
	})

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-a"}}
	ctx := auth.WithClaims(context.Background(), claims, "token")
	s.MCP().HandleMessage(ctx, []byte(
		`{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"query_todos","arguments":{"table":"todos","filters":[{"field":"title","operator":"eq","value":"secret plan"}]}}}`))

	entries := logs.FilterMessage("MCP tool call").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "query_todos", fields["tool"])
	assert.Equal(t, "user-a", fields["user_id"])
	assert.Equal(t, "todos", fields["table"])
	assert.EqualValues(t, 0, fields["row_count"])

	filters := fields["filters"].([]any)
	require.Len(t, filters, 1)
	assert.NotContains(t, filters[0], "secret plan")
	assert.Contains(t, filters[0], "title eq sha256:")
}

func TestHashValue_Deterministic(t *testing.T) {
	assert.Equal(t, hashValue("a"), hashValue("a"))
	assert.NotEqual(t, hashValue("a"), hashValue("b"))
	assert.Len(t, hashValue(42), len("sha256:")+16)
}
