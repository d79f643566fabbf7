package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	perrors "github.com/MagicOwO/pipo-agent/pkg/errors"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ActionAdapter exposes one MCP tool as a registry action. The tool's JSON
// input schema becomes the action's parameter spec, so plans bind MCP tool
// arguments exactly like built-in action parameters.
type ActionAdapter struct {
	spec   action.Spec
	caller ToolCaller
}

// NewActionAdapter builds an action backed by an MCP tool definition and
// caller.
func NewActionAdapter(tool mcp.Tool, caller ToolCaller) (*ActionAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ActionAdapter{
		spec:   specFromTool(tool),
		caller: caller,
	}, nil
}

func (a *ActionAdapter) Spec() action.Spec {
	return a.spec
}

func (a *ActionAdapter) Execute(ctx context.Context, params action.Params) (any, error) {
	args := make(map[string]interface{}, len(params))
	for k, v := range params {
		args[k] = v
	}

	result, err := a.caller.CallTool(ctx, a.spec.Name, args)
	if err != nil {
		return nil, perrors.New(perrors.CodeExecution, "mcp tool call failed", err).
			WithContext("tool", a.spec.Name).
			WithRecoverable(true)
	}
	return toolResultToOutput(result)
}

// RegisterTools discovers the caller's tools and registers each as an
// action. Name collisions with already registered actions fail registration.
func RegisterTools(ctx context.Context, reg *action.Registry, client *Client) error {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return perrors.New(perrors.CodeExecution, "mcp tool discovery failed", err)
	}
	for _, tool := range tools {
		adapter, err := NewActionAdapter(tool, client)
		if err != nil {
			return err
		}
		if err := reg.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}

// specFromTool maps an MCP tool's JSON input schema to an action spec.
// Unknown or missing schema types degrade to object parameters.
func specFromTool(tool mcp.Tool) action.Spec {
	required := make(map[string]bool, len(tool.InputSchema.Required))
	for _, name := range tool.InputSchema.Required {
		required[name] = true
	}

	params := make([]action.ParamSpec, 0, len(tool.InputSchema.Properties))
	for name, raw := range tool.InputSchema.Properties {
		p := action.ParamSpec{
			Name:     name,
			Type:     action.ParamObject,
			Required: required[name],
		}
		if prop, ok := raw.(map[string]interface{}); ok {
			if t, ok := prop["type"].(string); ok {
				p.Type = paramTypeFromJSONSchema(t)
			}
			if d, ok := prop["description"].(string); ok {
				p.Description = d
			}
			if d, ok := prop["default"]; ok {
				p.Default = d
			}
		}
		params = append(params, p)
	}

	return action.Spec{
		Name:        tool.Name,
		Description: tool.Description,
		Params:      params,
	}
}

func paramTypeFromJSONSchema(t string) action.ParamType {
	switch t {
	case "string":
		return action.ParamString
	case "integer":
		return action.ParamInt
	case "number":
		return action.ParamFloat
	case "boolean":
		return action.ParamBool
	case "array":
		return action.ParamList
	default:
		return action.ParamObject
	}
}

func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}

	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}

	return result, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ action.Action = (*ActionAdapter)(nil)
