//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// ToolSet defines an interface for managing a set of tools.
// It provides methods to retrieve the current tools and to perform cleanup.
type ToolSet interface {
	// Tools returns a slice of Tool instances available in the set based on
	// the provided context.
	Tools(context.Context) []CallableTool

	// Close releases any resources held by the ToolSet.
	Close() error

	// Name returns the name of the ToolSet for identification and conflict
	// resolution.
	Name() string
}

// FilterFunc is a function that filters tools based on a context and a tool.
type FilterFunc func(ctx context.Context, t Tool) bool

// FilterToolSet creates a new ToolSet that filters tools from the original
// ToolSet.
func FilterToolSet(toolset ToolSet, filter FilterFunc) ToolSet {
	return &filteredToolSet{
		original: toolset,
		filter:   filter,
	}
}

// filteredToolSet wraps a ToolSet to filter its tools based on their names.
type filteredToolSet struct {
	original ToolSet
	filter   FilterFunc
}

// Tools returns filtered tools from the original ToolSet.
func (f *filteredToolSet) Tools(ctx context.Context) []CallableTool {
	originalTools := f.original.Tools(ctx)
	if f.filter == nil {
		return originalTools
	}

	var result []CallableTool
	for _, t := range originalTools {
		if f.filter(ctx, t) {
			result = append(result, t)
		}
	}
	return result
}

// Close implements the ToolSet interface.
func (f *filteredToolSet) Close() error {
	return f.original.Close()
}

// Name implements the ToolSet interface.
func (f *filteredToolSet) Name() string {
	return f.original.Name()
}

// FilterTools returns the tools accepted by the filter. A nil filter keeps
// every tool.
func FilterTools(ctx context.Context, tools []CallableTool, filter FilterFunc) []CallableTool {
	if filter == nil {
		return tools
	}
	result := make([]CallableTool, 0, len(tools))
	for _, t := range tools {
		if filter(ctx, t) {
			result = append(result, t)
		}
	}
	return result
}

// NewIncludeToolNamesFilter creates a FilterFunc that includes only the
// specified tool names.
func NewIncludeToolNamesFilter(names ...string) FilterFunc {
	allowedNames := make(map[string]struct{}, len(names))
	for _, name := range names {
		allowedNames[name] = struct{}{}
	}
	return func(_ context.Context, t Tool) bool {
		declaration := t.Declaration()
		if declaration == nil {
			return false
		}
		_, ok := allowedNames[declaration.Name]
		return ok
	}
}

// NewExcludeToolNamesFilter creates a FilterFunc that excludes the specified
// tool names.
func NewExcludeToolNamesFilter(names ...string) FilterFunc {
	excludedNames := make(map[string]struct{}, len(names))
	for _, name := range names {
		excludedNames[name] = struct{}{}
	}
	return func(_ context.Context, t Tool) bool {
		declaration := t.Declaration()
		if declaration == nil {
			return false
		}
		_, ok := excludedNames[declaration.Name]
		return !ok
	}
}

// NewStaticToolSet wraps a fixed list of tools as a ToolSet.
func NewStaticToolSet(name string, tools ...CallableTool) ToolSet {
	return &staticToolSet{name: name, tools: tools}
}

type staticToolSet struct {
	name  string
	tools []CallableTool
}

// Tools implements the ToolSet interface.
func (s *staticToolSet) Tools(context.Context) []CallableTool {
	return s.tools
}

// Close implements the ToolSet interface.
func (s *staticToolSet) Close() error {
	return nil
}

// Name implements the ToolSet interface.
func (s *staticToolSet) Name() string {
	return s.name
}
