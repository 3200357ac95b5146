// Package mcp serves HomeBrew's query tools over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server whose tool calls are recorded by callLog.
// callLog may be nil.
func NewServer(name, version string, callLog *ToolCallLogger, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithHooks(callLog.Hooks()))
	}

	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates the HTTP transport. The mux routes /mcp to
// it, so no endpoint path is configured here. Every request carries its own
// bearer token, so no session state is kept.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	s.logger.Debug("Creating stateless streamable HTTP transport")
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
