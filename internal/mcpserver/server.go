// Package mcpserver serves the tool registry over the Model Context Protocol
// on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"OpenMCP-Stellar/internal/tools"
	"OpenMCP-Stellar/pkg/logger"
)

// Name is the server name announced during initialization.
const Name = "stellar-mcp"

// Server adapts a tools.Registry to an MCP server.
type Server struct {
	registry *tools.Registry
	mcp      *server.MCPServer
	log      *slog.Logger
}

// New registers every tool of registry on a new MCP server.
func New(registry *tools.Registry, version string) *Server {
	s := &Server{
		registry: registry,
		mcp:      server.NewMCPServer(Name, version, server.WithToolCapabilities(false), server.WithRecovery()),
		log:      logger.Named("mcp"),
	}
	for _, desc := range registry.List() {
		tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, desc.InputSchema)
		s.mcp.AddTool(tool, s.handler(desc.Name))
	}
	return s
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("arguments are not valid JSON: " + err.Error()), nil
		}
		result := s.registry.Call(ctx, name, args)
		payload, err := json.Marshal(result)
		if err != nil {
			s.log.Error("encode tool result", "tool", name, "error", err)
			return mcp.NewToolResultError("encode result: " + err.Error()), nil
		}
		out := mcp.NewToolResultText(string(payload))
		out.IsError = !result.Success
		return out, nil
	}
}

// ServeStdio serves until ctx is cancelled or in reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	s.log.Info("serving MCP on stdio", "tools", len(s.registry.List()))
	return stdio.Listen(ctx, in, out)
}
