// Package mcp serves the tool contract to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ServerName is advertised to clients during initialization.
const ServerName = "skill-engine"

// NewServer builds an MCP server exposing every tool in registry with its
// generated input schema.
func NewServer(registry *tools.Registry, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, tool := range registry.Tools() {
		schema, err := json.Marshal(tool.GenerateSchema())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal input schema for %s", tool.Name())
		}
		s.AddTool(
			mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema),
			ToolHandler(registry, tool.Name()),
		)
	}
	return s, nil
}

// ToolHandler runs one contract tool per call with a fresh request state.
// Tool failures are reported as MCP error results, not protocol errors.
func ToolHandler(registry *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		params, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError("failed to encode arguments: " + err.Error()), nil
		}

		ctx = logger.WithField(ctx, "transport", "mcp")
		result := registry.RunTool(ctx, tools.NewBasicState(), name, string(params))
		if result.IsError() {
			return mcp.NewToolResultError(result.GetError()), nil
		}
		return mcp.NewToolResultText(result.GetResult()), nil
	}
}

// ServeStdio serves s on stdin/stdout until ctx is cancelled or stdin closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s)

	w := logger.G(ctx).WriterLevel(logrus.ErrorLevel)
	defer w.Close()
	stdio.SetErrorLogger(log.New(w, "", 0))

	logger.G(ctx).Info("serving MCP over stdio")
	if err := stdio.Listen(ctx, stdin, stdout); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "MCP stdio server failed")
	}
	return nil
}
