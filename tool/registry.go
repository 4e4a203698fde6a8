//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"trpc.group/trpc-go/trpc-crew-go/log"
)

// Registry errors.
var (
	// ErrUnknownTool is returned by Resolve for names not in the registry.
	ErrUnknownTool = errors.New("unknown tool")

	errNilTool       = errors.New("nil tool")
	errEmptyName     = errors.New("tool name is empty")
	errDuplicateTool = errors.New("duplicate tool name")
)

// Registry is the static catalog of available tools. It is built once at
// startup from local tools and toolsets; after construction it is read-only
// and safe for concurrent use. Adding tools requires building a new
// registry.
type Registry struct {
	tools    map[string]CallableTool
	names    []string
	toolsets []ToolSet
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	tools    []CallableTool
	toolsets []ToolSet
}

// WithTools registers individual tools.
func WithTools(tools ...CallableTool) RegistryOption {
	return func(o *registryOptions) {
		o.tools = append(o.tools, tools...)
	}
}

// WithToolSets registers toolsets. Their tools are collected once during
// construction; the sets are closed when the registry is closed.
func WithToolSets(sets ...ToolSet) RegistryOption {
	return func(o *registryOptions) {
		o.toolsets = append(o.toolsets, sets...)
	}
}

// NewRegistry builds a registry from the given tools and toolsets.
// Tool names must be unique across all sources.
func NewRegistry(ctx context.Context, opts ...RegistryOption) (*Registry, error) {
	options := &registryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	r := &Registry{
		tools:    make(map[string]CallableTool),
		toolsets: options.toolsets,
	}
	for _, t := range options.tools {
		if err := r.add(t, "static"); err != nil {
			return nil, err
		}
	}
	for _, set := range options.toolsets {
		for _, t := range set.Tools(ctx) {
			if err := r.add(t, set.Name()); err != nil {
				return nil, err
			}
		}
	}

	r.names = make([]string, 0, len(r.tools))
	for name := range r.tools {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	log.Debugf("tool registry built with %d tools", len(r.tools))
	return r, nil
}

func (r *Registry) add(t CallableTool, source string) error {
	if t == nil {
		return errNilTool
	}
	decl := t.Declaration()
	if decl == nil || decl.Name == "" {
		return fmt.Errorf("%w (source %s)", errEmptyName, source)
	}
	if _, exists := r.tools[decl.Name]; exists {
		return fmt.Errorf("%w: %s (source %s)", errDuplicateTool, decl.Name, source)
	}
	r.tools[decl.Name] = t
	return nil
}

// Resolve returns the tool registered under name.
// It fails with ErrUnknownTool when the name is absent.
func (r *Registry) Resolve(name string) (CallableTool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Declarations returns the declarations of the named tools.
// Unknown names are skipped; with no names it returns all declarations in
// name order.
func (r *Registry) Declarations(names ...string) []*Declaration {
	if len(names) == 0 {
		names = r.names
	}
	decls := make([]*Declaration, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			decls = append(decls, t.Declaration())
		}
	}
	return decls
}

// Tools returns the named tools keyed by name, skipping unknown names.
func (r *Registry) Tools(names ...string) map[string]CallableTool {
	if len(names) == 0 {
		names = r.names
	}
	tools := make(map[string]CallableTool, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			tools[name] = t
		}
	}
	return tools
}

// Close shuts down all toolsets backing the registry.
func (r *Registry) Close() error {
	var errs []error
	for _, set := range r.toolsets {
		if err := set.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing toolset %s: %w", set.Name(), err))
		}
	}
	return errors.Join(errs...)
}
