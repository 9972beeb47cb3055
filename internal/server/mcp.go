// Package server assembles the daemon: the stdio agent surface, the
// local dashboard, and the singleton guard that keeps a second
// instance off the DAW sockets.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/haasonsaas/livebridge/internal/tools"
)

// MCPServer is the stdio agent surface. Every registered tool, resource,
// and prompt is exposed; tool calls are funneled through the dispatcher
// so the envelope, validation, and call log stay uniform.
type MCPServer struct {
	srv        *mcpserver.MCPServer
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
}

func NewMCPServer(name, version string, dispatcher *tools.Dispatcher, resources []tools.Resource, prompts []tools.Prompt, logger *slog.Logger) *MCPServer {
	srv := mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	s := &MCPServer{
		srv:        srv,
		dispatcher: dispatcher,
		logger:     logger.With("component", "mcp"),
	}
	s.registerTools()
	s.registerResources(resources)
	s.registerPrompts(prompts)
	return s
}

// Serve runs the stdio loop until the context is canceled or stdin
// closes. stdout carries only protocol frames; all logging goes to
// stderr.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.srv)
	return stdio.Listen(ctx, in, out)
}

func (s *MCPServer) registerTools() {
	for _, tool := range s.dispatcher.Registry().List() {
		schema := tool.Schema
		if schema == "" {
			schema = `{"type":"object"}`
		}
		mcpTool := mcp.NewToolWithRawSchema(tool.Name, tool.Description, json.RawMessage(schema))
		s.srv.AddTool(mcpTool, s.wrapTool(tool.Name))
	}
}

// wrapTool adapts one dispatcher route to the wire handler shape. The
// dispatcher already folds every failure into the envelope, so the
// handler itself never errors; IsError mirrors the envelope status.
func (s *MCPServer) wrapTool(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := s.dispatcher.Dispatch(ctx, name, request.GetArguments())

		var probe struct {
			Status string `json:"status"`
		}
		_ = json.Unmarshal([]byte(raw), &probe)

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(raw)},
			IsError: probe.Status == "error",
		}, nil
	}
}

func (s *MCPServer) registerResources(resources []tools.Resource) {
	for _, res := range resources {
		res := res
		mcpRes := mcp.NewResource(
			res.URI,
			res.Name,
			mcp.WithResourceDescription(res.Description),
			mcp.WithMIMEType(res.MIMEType),
		)
		s.srv.AddResource(mcpRes, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			text, err := res.Read(ctx)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", res.URI, err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      res.URI,
					MIMEType: res.MIMEType,
					Text:     text,
				},
			}, nil
		})
	}
}

func (s *MCPServer) registerPrompts(prompts []tools.Prompt) {
	for _, prompt := range prompts {
		prompt := prompt
		opts := []mcp.PromptOption{mcp.WithPromptDescription(prompt.Description)}
		for _, arg := range prompt.Arguments {
			argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
			if arg.Required {
				argOpts = append(argOpts, mcp.RequiredArgument())
			}
			opts = append(opts, mcp.WithArgument(arg.Name, argOpts...))
		}
		s.srv.AddPrompt(mcp.NewPrompt(prompt.Name, opts...), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			for _, arg := range prompt.Arguments {
				if arg.Required && request.Params.Arguments[arg.Name] == "" {
					return nil, fmt.Errorf("prompt %s requires argument %q", prompt.Name, arg.Name)
				}
			}
			text := prompt.Render(request.Params.Arguments)
			return mcp.NewGetPromptResult(prompt.Description, []mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
			}), nil
		})
	}
}
