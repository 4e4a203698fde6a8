//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp exposes the tools of an MCP server as a ToolSet.
package mcp

import (
	"fmt"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// transport specifies the transport method: "stdio" or "streamable".
type transport string

const (
	// transportStdio runs the server as a local child process.
	transportStdio transport = "stdio"
	// transportStreamable talks to a remote server over streamable HTTP.
	transportStreamable transport = "streamable"

	defaultName = "mcp"
)

// Default configurations.
var (
	defaultClientInfo = mcp.Implementation{
		Name:    "trpc-crew-go",
		Version: "1.0.0",
	}

	// defaultRetryConfig provides conservative retry settings.
	defaultRetryConfig = RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     8 * time.Second,
	}
)

// ConnectionConfig defines the configuration for connecting to an MCP server.
type ConnectionConfig struct {
	// Transport specifies the transport method: "stdio" or "streamable".
	Transport string `json:"transport"`

	// Streamable configuration.
	ServerURL string            `json:"server_url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	// STDIO configuration.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Common configuration.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Advanced configuration.
	ClientInfo mcp.Implementation `json:"client_info,omitempty"`
}

// RetryConfig defines configuration for MCP tool call retry behavior.
type RetryConfig struct {
	// MaxRetries specifies the maximum number of retry attempts for tool calls.
	MaxRetries int `json:"max_retries"`

	// InitialBackoff specifies the backoff duration before the first retry.
	InitialBackoff time.Duration `json:"initial_backoff"`

	// BackoffFactor multiplies the backoff duration for each retry.
	BackoffFactor float64 `json:"backoff_factor"`

	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration `json:"max_backoff"`
}

// toolSetConfig holds internal configuration for ToolSet.
type toolSetConfig struct {
	name             string
	connectionConfig ConnectionConfig
	toolFilter       tool.FilterFunc
	mcpOptions       []mcp.ClientOption
	retryConfig      *RetryConfig
}

// ToolSetOption is a function type for configuring ToolSet.
type ToolSetOption func(*toolSetConfig)

// WithName sets the tool set name. Defaults to "mcp".
func WithName(name string) ToolSetOption {
	return func(c *toolSetConfig) {
		c.name = name
	}
}

// WithToolFilterFunc configures tool filtering.
func WithToolFilterFunc(filter tool.FilterFunc) ToolSetOption {
	return func(c *toolSetConfig) {
		c.toolFilter = filter
	}
}

// WithMCPOptions sets additional options for the underlying MCP client.
func WithMCPOptions(options ...mcp.ClientOption) ToolSetOption {
	return func(c *toolSetConfig) {
		c.mcpOptions = append(c.mcpOptions, options...)
	}
}

// WithSimpleRetry configures retry behavior with default backoff settings.
// maxRetries is clamped to the 0-10 range.
func WithSimpleRetry(maxRetries int) ToolSetOption {
	return func(c *toolSetConfig) {
		config := defaultRetryConfig
		config.MaxRetries = maxRetries
		validated := validateRetryConfig(config)
		c.retryConfig = &validated
	}
}

// WithRetry configures retry behavior with custom settings. All parameters
// are validated and clamped to reasonable ranges.
func WithRetry(config RetryConfig) ToolSetOption {
	return func(c *toolSetConfig) {
		validated := validateRetryConfig(config)
		c.retryConfig = &validated
	}
}

// validateRetryConfig validates and sanitizes retry configuration values.
func validateRetryConfig(config RetryConfig) RetryConfig {
	validated := config

	// MaxRetries: 0-10 range.
	if validated.MaxRetries < 0 {
		validated.MaxRetries = 0
	} else if validated.MaxRetries > 10 {
		validated.MaxRetries = 10
	}

	// InitialBackoff: 1ms-30s range.
	if validated.InitialBackoff < time.Millisecond {
		validated.InitialBackoff = time.Millisecond
	} else if validated.InitialBackoff > 30*time.Second {
		validated.InitialBackoff = 30 * time.Second
	}

	// BackoffFactor: 1.0-10.0 range.
	if validated.BackoffFactor < 1.0 {
		validated.BackoffFactor = 1.0
	} else if validated.BackoffFactor > 10.0 {
		validated.BackoffFactor = 10.0
	}

	// MaxBackoff: InitialBackoff-5min range.
	if validated.MaxBackoff < validated.InitialBackoff {
		validated.MaxBackoff = validated.InitialBackoff
	} else if validated.MaxBackoff > 5*time.Minute {
		validated.MaxBackoff = 5 * time.Minute
	}

	return validated
}

// validateTransport validates the transport string and returns the internal
// transport type.
func validateTransport(t string) (transport, error) {
	switch t {
	case "stdio", "local":
		return transportStdio, nil
	case "streamable", "streamable_http", "remote":
		return transportStreamable, nil
	default:
		return "", fmt.Errorf("unsupported transport: %s, supported: stdio, streamable", t)
	}
}
