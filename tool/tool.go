//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the tool contracts used by agents and provides the
// registry that resolves tool names to callable providers.
package tool

import "context"

// Tool is the interface that all tools implement.
type Tool interface {
	// Declaration returns the tool's declaration information.
	Declaration() *Declaration
}

// CallableTool is a tool that can be invoked directly with JSON arguments.
type CallableTool interface {
	Tool

	// Call executes the tool with the given JSON arguments and returns the
	// result. Implementations should honor ctx cancellation for anything
	// that blocks.
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Declaration describes a tool to models and callers.
type Declaration struct {
	// Name is the unique tool name.
	Name string `json:"name"`
	// Description explains what the tool does.
	Description string `json:"description"`
	// InputSchema is the JSON schema of the tool arguments.
	InputSchema *Schema `json:"inputSchema,omitempty"`
	// OutputSchema is the JSON schema of the tool result.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Schema is a JSON schema node.
type Schema struct {
	// Type is the JSON type: object, array, string, number, integer, boolean.
	Type string `json:"type,omitempty"`
	// Description documents the node.
	Description string `json:"description,omitempty"`
	// Properties holds the schemas of an object's fields.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Required lists the object fields that must be present.
	Required []string `json:"required,omitempty"`
	// Items is the schema of an array's elements.
	Items *Schema `json:"items,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// Default is the value used when the field is absent.
	Default any `json:"default,omitempty"`
	// AdditionalProperties is the schema of a map's values.
	AdditionalProperties *Schema `json:"additionalProperties,omitempty"`
	// Ref references a schema under Defs, e.g. "#/$defs/Node".
	Ref string `json:"$ref,omitempty"`
	// Defs holds reusable schema definitions for recursive types.
	Defs map[string]*Schema `json:"$defs,omitempty"`
}
