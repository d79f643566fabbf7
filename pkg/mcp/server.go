package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/MagicOwO/pipo-agent/pkg/action"
)

// Server exposes registry actions as MCP tools, so other MCP clients can
// call this agent's capabilities over stdio.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server with the given identity.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
}

// RegisterAction exposes one action as an MCP tool. The action's parameter
// spec becomes the tool's input schema.
func (s *Server) RegisterAction(act action.Action) {
	spec := act.Spec()

	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
	for _, p := range spec.Params {
		opts = append(opts, toolOptionForParam(p))
	}
	tool := mcp.NewTool(spec.Name, opts...)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		params := make(action.Params, len(args))
		for k, v := range args {
			params[k] = v
		}

		out, err := act.Execute(ctx, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResultFromOutput(out)
	})
}

// RegisterRegistry exposes every action in the registry as an MCP tool.
func (s *Server) RegisterRegistry(reg *action.Registry) {
	for _, spec := range reg.List() {
		if act, err := reg.Lookup(spec.Name); err == nil {
			s.RegisterAction(act)
		}
	}
}

// ServeStdio starts the server on stdio and blocks until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func toolOptionForParam(p action.ParamSpec) mcp.ToolOption {
	var propOpts []mcp.PropertyOption
	if p.Description != "" {
		propOpts = append(propOpts, mcp.Description(p.Description))
	}
	if p.Required {
		propOpts = append(propOpts, mcp.Required())
	}

	switch p.Type {
	case action.ParamInt, action.ParamFloat:
		return mcp.WithNumber(p.Name, propOpts...)
	case action.ParamBool:
		return mcp.WithBoolean(p.Name, propOpts...)
	case action.ParamList:
		return mcp.WithArray(p.Name, propOpts...)
	case action.ParamObject:
		return mcp.WithObject(p.Name, propOpts...)
	default:
		return mcp.WithString(p.Name, propOpts...)
	}
}

func toolResultFromOutput(out any) (*mcp.CallToolResult, error) {
	switch v := out.(type) {
	case string:
		return mcp.NewToolResultText(v), nil
	case nil:
		return mcp.NewToolResultText(""), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("%v", v)), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}
