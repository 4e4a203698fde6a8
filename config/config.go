//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the static JSON manifests that describe MCP tool
// servers and agent teams. Manifests are read once at startup and never
// mutated afterwards; changing them requires a restart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/mcp"
)

// ServerConfig is one MCP server entry in the manifest. Local process
// servers set Command; remote servers set URL. Exactly one of the two must
// be present.
type ServerConfig struct {
	// Local process servers.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Remote servers.
	URL       string            `json:"url,omitempty"`
	Transport string            `json:"transport,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	// Capabilities narrows the tools mounted from this server to the
	// named ones. Empty mounts everything the server lists.
	Capabilities []string `json:"capabilities,omitempty"`

	// Description is informational only.
	Description string `json:"description,omitempty"`

	// TimeoutSeconds bounds each request to this server. Zero keeps the
	// tool set default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ServerManifest is the parsed form of an MCP server manifest file.
type ServerManifest struct {
	// Servers maps server name to its connection entry.
	Servers map[string]ServerConfig
}

// UnmarshalJSON accepts both the conventional "mcpServers" key and the
// legacy "servers" key. When both are present, "mcpServers" wins.
func (m *ServerManifest) UnmarshalJSON(data []byte) error {
	var raw struct {
		MCPServers map[string]ServerConfig `json:"mcpServers"`
		Servers    map[string]ServerConfig `json:"servers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Servers = raw.MCPServers
	if m.Servers == nil {
		m.Servers = raw.Servers
	}
	return nil
}

// LoadServers reads and validates the MCP server manifest at path.
func LoadServers(path string) (*ServerManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := ParseServers(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseServers parses and validates manifest JSON.
func ParseServers(data []byte) (*ServerManifest, error) {
	var m ServerManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every server entry for structural problems.
func (m *ServerManifest) Validate() error {
	for _, name := range m.Names() {
		if err := m.Servers[name].validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the configured server names in sorted order.
func (m *ServerManifest) Names() []string {
	names := make([]string, 0, len(m.Servers))
	for name := range m.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolSets builds one MCP tool set per server, in name order. Servers
// declaring capabilities mount only the named tools. Extra options apply
// to every set.
func (m *ServerManifest) ToolSets(opts ...mcp.ToolSetOption) []tool.ToolSet {
	sets := make([]tool.ToolSet, 0, len(m.Servers))
	for _, name := range m.Names() {
		sets = append(sets, m.Servers[name].toolSet(name, opts...))
	}
	return sets
}

// MCPServers loads the manifest at path and returns one tool set per
// configured server, ready for tool.WithToolSets. Connections are
// established lazily, so a server that is down does not fail the load.
func MCPServers(path string, opts ...mcp.ToolSetOption) ([]tool.ToolSet, error) {
	m, err := LoadServers(path)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d MCP server configurations from %s", len(m.Servers), path)
	return m.ToolSets(opts...), nil
}

func (s ServerConfig) validate(name string) error {
	switch {
	case s.Command == "" && s.URL == "":
		return fmt.Errorf("server %s: either command or url is required", name)
	case s.Command != "" && s.URL != "":
		return fmt.Errorf("server %s: command and url are mutually exclusive", name)
	case s.TimeoutSeconds < 0:
		return fmt.Errorf("server %s: timeout_seconds must not be negative", name)
	}
	if _, err := s.transport(); err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	return nil
}

// transport resolves the entry's transport. Local entries default to
// stdio, remote entries to streamable HTTP.
func (s ServerConfig) transport() (string, error) {
	if s.Command != "" {
		switch s.Transport {
		case "", "stdio", "local":
			return "stdio", nil
		}
		return "", fmt.Errorf("transport %s does not run a local command", s.Transport)
	}
	switch s.Transport {
	case "", "streamable", "streamable_http", "remote":
		return "streamable", nil
	}
	return "", fmt.Errorf("unsupported transport: %s, supported: stdio, streamable", s.Transport)
}

func (s ServerConfig) toolSet(name string, opts ...mcp.ToolSetOption) tool.ToolSet {
	// Validate has already vetted the transport.
	transport, _ := s.transport()
	conn := mcp.ConnectionConfig{
		Transport: transport,
		Command:   s.Command,
		Args:      s.Args,
		Env:       s.Env,
		ServerURL: s.URL,
		Headers:   s.Headers,
		Timeout:   time.Duration(s.TimeoutSeconds) * time.Second,
	}
	setOpts := []mcp.ToolSetOption{mcp.WithName(name)}
	if len(s.Capabilities) > 0 {
		setOpts = append(setOpts, mcp.WithToolFilterFunc(tool.NewIncludeToolNamesFilter(s.Capabilities...)))
	}
	setOpts = append(setOpts, opts...)
	return mcp.NewMCPToolSet(conn, setOpts...)
}
