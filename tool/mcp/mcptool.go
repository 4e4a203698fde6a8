//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// mcpTool adapts a single server-side MCP tool to the CallableTool interface.
type mcpTool struct {
	declaration *tool.Declaration
	manager     *mcpSessionManager
	retryConfig *RetryConfig
}

// newMCPTool wraps an MCP tool definition as a callable tool.
func newMCPTool(t mcp.Tool, manager *mcpSessionManager, retryConfig *RetryConfig) *mcpTool {
	return &mcpTool{
		declaration: &tool.Declaration{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: convertInputSchema(t),
		},
		manager:     manager,
		retryConfig: retryConfig,
	}
}

// convertInputSchema recovers the tool's input schema from the wire form of
// the definition. Schemas travel as plain JSON in the protocol.
func convertInputSchema(t mcp.Tool) *tool.Schema {
	fallback := &tool.Schema{Type: "object"}
	data, err := json.Marshal(t)
	if err != nil {
		return fallback
	}
	var wire struct {
		InputSchema *tool.Schema `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &wire); err != nil || wire.InputSchema == nil {
		return fallback
	}
	return wire.InputSchema
}

// Declaration implements the Tool interface.
func (t *mcpTool) Declaration() *tool.Declaration {
	return t.declaration
}

// Call implements the CallableTool interface. Arguments that fail to decode
// produce a tool.ValidationError and never reach the server. Transient call
// failures are retried per the retry configuration.
func (t *mcpTool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var arguments map[string]any
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &arguments); err != nil {
			return nil, tool.NewValidationError(err)
		}
	}

	name := t.declaration.Name
	result, err := executeWithRetry(ctx, t.retryConfig, func() (any, error) {
		return t.manager.callTool(ctx, name, arguments)
	}, "call_tool_"+name)
	if err != nil {
		return nil, err
	}

	contents, ok := result.([]mcp.Content)
	if !ok {
		return result, nil
	}
	return flattenContent(contents), nil
}

// flattenContent renders the text portions of an MCP result as one string.
func flattenContent(contents []mcp.Content) string {
	var texts []string
	for _, content := range contents {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return strings.Join(texts, "\n")
}
