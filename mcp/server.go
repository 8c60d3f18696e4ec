// Package mcp exposes PDF inspection as Model Context Protocol tools.
//
// Two tools are registered: extract_pdf_text and extract_pdf_metadata. Both
// take {"filePath": "..."}, return their result as a single text block of
// JSON indented with two spaces, and fail with JSON-RPC errors: -32602 for
// bad arguments or unusable paths, -32601 for unknown tools and -32603 for
// everything else.
//
// # Usage with Claude Desktop
//
// Add to your claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdf-reader": {
//	      "command": "pdf-reader-mcp"
//	    }
//	  }
//	}
package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// ServerName is reported to clients during initialization.
const ServerName = "pdf-reader"

// Server binds a Registry to an MCP protocol server.
type Server struct {
	registry *Registry
	server   *mcpsdk.Server
	tools    []*mcpsdk.Tool // registry order
	log      logrus.FieldLogger
}

// NewServer creates a protocol server advertising every tool in reg.
func NewServer(reg *Registry, version string) *Server {
	s := &Server{
		registry: reg,
		server:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil),
		log:      reg.log,
	}
	for _, d := range reg.Tools() {
		tool := &mcpsdk.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
		s.tools = append(s.tools, tool)
		s.server.AddTool(tool, s.toolHandler(d.Name))
	}
	s.server.AddReceivingMiddleware(s.listToolsInOrder, s.rejectUnknownTools)
	return s
}

// listToolsInOrder answers tools/list with the registry's order. The
// protocol server would otherwise list tools sorted by name.
func (s *Server) listToolsInOrder(next mcpsdk.MethodHandler) mcpsdk.MethodHandler {
	return func(ctx context.Context, method string, req mcpsdk.Request) (mcpsdk.Result, error) {
		if method != "tools/list" {
			return next(ctx, method, req)
		}
		return &mcpsdk.ListToolsResult{
			Tools: append([]*mcpsdk.Tool(nil), s.tools...),
		}, nil
	}
}

func (s *Server) toolHandler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		text, err := s.registry.Call(ctx, name, req.Params.Arguments)
		if err != nil {
			return nil, asToolError(name, err).WireError()
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		}, nil
	}
}

// rejectUnknownTools answers calls to unregistered tools with
// method-not-found before the protocol server looks them up.
func (s *Server) rejectUnknownTools(next mcpsdk.MethodHandler) mcpsdk.MethodHandler {
	return func(ctx context.Context, method string, req mcpsdk.Request) (mcpsdk.Result, error) {
		if method != "tools/call" {
			return next(ctx, method, req)
		}
		call, ok := req.(*mcpsdk.CallToolRequest)
		if !ok || call.Params == nil || s.registry.Has(call.Params.Name) {
			return next(ctx, method, req)
		}
		s.log.WithField("tool", call.Params.Name).Warn("call to unknown tool")
		return nil, methodNotFound(call.Params.Name).WireError()
	}
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

// Run serves a single session on transport until the client disconnects or
// ctx is cancelled. Cancellation is a clean shutdown.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
