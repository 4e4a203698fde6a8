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
	"fmt"
	"net/http"
	"os"
	"sync"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// MCPToolSet implements the ToolSet interface for MCP tools.
type MCPToolSet struct {
	config         toolSetConfig
	sessionManager *mcpSessionManager
	tools          []tool.CallableTool
	mu             sync.RWMutex
}

// NewMCPToolSet creates a new MCP tool set with the given configuration.
// The connection is established lazily on the first Tools call.
func NewMCPToolSet(config ConnectionConfig, opts ...ToolSetOption) *MCPToolSet {
	cfg := toolSetConfig{
		name:             defaultName,
		connectionConfig: config,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.retryConfig == nil {
		retryConfig := defaultRetryConfig
		cfg.retryConfig = &retryConfig
	}
	if cfg.connectionConfig.ClientInfo.Name == "" {
		cfg.connectionConfig.ClientInfo = defaultClientInfo
	}
	return &MCPToolSet{
		config:         cfg,
		sessionManager: newMCPSessionManager(cfg.connectionConfig, cfg.mcpOptions),
	}
}

// Tools implements the ToolSet interface. The tool list is fetched from the
// server on first use and cached afterwards.
func (ts *MCPToolSet) Tools(ctx context.Context) []tool.CallableTool {
	ts.mu.RLock()
	cached := len(ts.tools) > 0
	ts.mu.RUnlock()

	if !cached {
		if err := ts.refreshTools(ctx); err != nil {
			log.Errorf("Failed to refresh MCP tools: %v", err)
		}
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	result := make([]tool.CallableTool, len(ts.tools))
	copy(result, ts.tools)
	return result
}

// Name implements the ToolSet interface.
func (ts *MCPToolSet) Name() string {
	return ts.config.name
}

// Close implements the ToolSet interface.
func (ts *MCPToolSet) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if err := ts.sessionManager.close(); err != nil {
		return fmt.Errorf("closing MCP session: %w", err)
	}
	return nil
}

// IsConnected returns whether the MCP session is connected and initialized.
func (ts *MCPToolSet) IsConnected() bool {
	return ts.sessionManager.isConnected()
}

// refreshTools connects to the MCP server and refreshes the tool list.
func (ts *MCPToolSet) refreshTools(ctx context.Context) error {
	if !ts.sessionManager.isConnected() {
		if err := ts.sessionManager.connect(ctx); err != nil {
			return fmt.Errorf("connecting to MCP server: %w", err)
		}
	}

	mcpTools, err := ts.sessionManager.listTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools from MCP server: %w", err)
	}

	tools := make([]tool.CallableTool, 0, len(mcpTools))
	for _, mcpTool := range mcpTools {
		tools = append(tools, newMCPTool(mcpTool, ts.sessionManager, ts.config.retryConfig))
	}
	tools = tool.FilterTools(ctx, tools, ts.config.toolFilter)

	ts.mu.Lock()
	ts.tools = tools
	ts.mu.Unlock()

	log.Debugf("Refreshed %d MCP tools from %s", len(tools), ts.config.name)
	return nil
}

// mcpSessionManager manages the MCP client connection and session.
type mcpSessionManager struct {
	config      ConnectionConfig
	mcpOptions  []mcp.ClientOption
	client      mcp.Connector
	mu          sync.RWMutex
	connected   bool
	initialized bool
}

// newMCPSessionManager creates a new MCP session manager.
func newMCPSessionManager(config ConnectionConfig, mcpOptions []mcp.ClientOption) *mcpSessionManager {
	return &mcpSessionManager{
		config:     config,
		mcpOptions: mcpOptions,
	}
}

// connect establishes the connection to the MCP server and initializes the
// session.
func (m *mcpSessionManager) connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return nil
	}

	log.Infof("Connecting to MCP server, transport: %s", m.config.Transport)

	client, err := m.createClient()
	if err != nil {
		return fmt.Errorf("creating MCP client: %w", err)
	}
	m.client = client
	m.connected = true

	if err := m.initialize(ctx); err != nil {
		m.connected = false
		if closeErr := client.Close(); closeErr != nil {
			log.Errorf("Failed to close client after initialization failure: %v", closeErr)
		}
		return fmt.Errorf("initializing MCP session: %w", err)
	}
	return nil
}

// createClient creates the appropriate MCP client based on the transport
// configuration.
func (m *mcpSessionManager) createClient() (mcp.Connector, error) {
	clientInfo := m.config.ClientInfo
	if clientInfo.Name == "" {
		clientInfo = defaultClientInfo
	}

	transportType, err := validateTransport(m.config.Transport)
	if err != nil {
		return nil, err
	}

	switch transportType {
	case transportStdio:
		// The stdio transport carries no environment block of its own;
		// the server process inherits this one. Export per-server
		// entries before launch.
		for k, v := range m.config.Env {
			if err := os.Setenv(k, v); err != nil {
				return nil, fmt.Errorf("setting env %s: %w", k, err)
			}
		}
		config := mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: m.config.Command,
				Args:    m.config.Args,
			},
			Timeout: m.config.Timeout,
		}
		return mcp.NewStdioClient(config, clientInfo)

	case transportStreamable:
		options := append([]mcp.ClientOption{}, m.mcpOptions...)
		if len(m.config.Headers) > 0 {
			headers := http.Header{}
			for k, v := range m.config.Headers {
				headers.Set(k, v)
			}
			options = append(options, mcp.WithHTTPHeaders(headers))
		}
		return mcp.NewClient(m.config.ServerURL, clientInfo, options...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", m.config.Transport)
	}
}

// initialize initializes the MCP session.
func (m *mcpSessionManager) initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	initRsp, err := m.client.Initialize(ctx, &mcp.InitializeRequest{})
	if err != nil {
		return err
	}

	log.Infof("MCP session initialized, server: %s %s, protocol: %s",
		initRsp.ServerInfo.Name, initRsp.ServerInfo.Version, initRsp.ProtocolVersion)

	m.initialized = true
	return nil
}

// listTools retrieves the list of available tools from the MCP server.
func (m *mcpSessionManager) listTools(ctx context.Context) ([]mcp.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected || !m.initialized {
		return nil, fmt.Errorf("MCP session not connected or initialized")
	}

	listRsp, err := m.client.ListTools(ctx, &mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return listRsp.Tools, nil
}

// callTool executes a tool call on the MCP server.
func (m *mcpSessionManager) callTool(ctx context.Context, name string, arguments map[string]any) ([]mcp.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected || !m.initialized {
		return nil, fmt.Errorf("MCP session not connected or initialized")
	}

	callReq := &mcp.CallToolRequest{}
	callReq.Params.Name = name
	callReq.Params.Arguments = arguments

	callRsp, err := m.client.CallTool(ctx, callReq)
	if err != nil {
		log.Errorf("Tool call failed, name: %s, error: %v", name, err)
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}

	// The protocol reports tool failures in-band on the result.
	if callRsp.IsError {
		errorMessage := extractErrorFromContent(callRsp.Content)
		log.Errorf("Tool returned error, name: %s, error: %s", name, errorMessage)
		return nil, fmt.Errorf("tool %s returned error: %s", name, errorMessage)
	}
	return callRsp.Content, nil
}

// extractErrorFromContent extracts error information from MCP content.
func extractErrorFromContent(contents []mcp.Content) string {
	if len(contents) == 0 {
		return "unknown error"
	}
	var errorMessages []string
	for _, content := range contents {
		if textContent, ok := content.(mcp.TextContent); ok {
			errorMessages = append(errorMessages, textContent.Text)
		}
	}
	if len(errorMessages) == 0 {
		return "error content not readable"
	}
	if len(errorMessages) == 1 {
		return errorMessages[0]
	}
	return fmt.Sprintf("%v", errorMessages)
}

// close closes the MCP session and client connection.
func (m *mcpSessionManager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.client == nil {
		return nil
	}

	err := m.client.Close()
	m.connected = false
	m.initialized = false
	m.client = nil

	if err != nil {
		return fmt.Errorf("closing MCP client: %w", err)
	}
	return nil
}

// isConnected returns whether the session is connected and initialized.
func (m *mcpSessionManager) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && m.initialized
}
