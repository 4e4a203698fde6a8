//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package function provides a generic wrapper exposing a Go function as a
// callable tool with a reflection-generated JSON schema.
package function

import (
	"context"
	"encoding/json"
	"reflect"

	"trpc.group/trpc-go/trpc-crew-go/internal/schema"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// Option configures a FunctionTool.
type Option func(*functionToolOptions)

type functionToolOptions struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	unmarshaler  unmarshaler
}

// WithName sets the name of the function tool.
func WithName(name string) Option {
	return func(opts *functionToolOptions) {
		opts.name = name
	}
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(opts *functionToolOptions) {
		opts.description = description
	}
}

// WithInputSchema sets a custom input schema for the function tool.
// When provided, the automatic schema generation will be skipped.
func WithInputSchema(s *tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.inputSchema = s
	}
}

// WithOutputSchema sets a custom output schema for the function tool.
// When provided, the automatic schema generation will be skipped.
func WithOutputSchema(s *tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.outputSchema = s
	}
}

// WithUnmarshaler sets a custom argument unmarshaler.
func WithUnmarshaler(u func(data []byte, v any) error) Option {
	return func(opts *functionToolOptions) {
		opts.unmarshaler = unmarshalFunc(u)
	}
}

// FunctionTool wraps a typed Go function as a CallableTool.
type FunctionTool[I, O any] struct {
	fn           func(context.Context, I) (O, error)
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	unmarshaler  unmarshaler
}

// NewFunctionTool creates a new FunctionTool from fn. The input and output
// schemas are generated from the function's parameter and result types
// unless overridden through options.
func NewFunctionTool[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	options := &functionToolOptions{
		unmarshaler: &jsonUnmarshaler{},
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.name == "" {
		log.Warnf("FunctionTool: name is empty")
	}
	if options.description == "" {
		log.Warnf("FunctionTool: description is empty")
	}

	var (
		emptyI I
		emptyO O
	)

	iSchema := options.inputSchema
	if iSchema == nil {
		iSchema = schema.Generate(reflect.TypeOf(emptyI))
	}
	oSchema := options.outputSchema
	if oSchema == nil {
		oSchema = schema.Generate(reflect.TypeOf(emptyO))
	}

	return &FunctionTool[I, O]{
		fn:           fn,
		name:         options.name,
		description:  options.description,
		inputSchema:  iSchema,
		outputSchema: oSchema,
		unmarshaler:  options.unmarshaler,
	}
}

// Call executes the function tool with the provided JSON arguments.
// Arguments that fail to unmarshal into the input type produce a
// tool.ValidationError; the call is never forwarded to the function.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var input I
	if len(jsonArgs) > 0 {
		if err := ft.unmarshaler.Unmarshal(jsonArgs, &input); err != nil {
			return nil, tool.NewValidationError(err)
		}
	}
	return ft.fn(ctx, input)
}

// Declaration returns the tool's declaration information.
//
// Note: tool names must match ^[a-zA-Z0-9_-]+$ for maximum backend
// compatibility.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:         ft.name,
		Description:  ft.description,
		InputSchema:  ft.inputSchema,
		OutputSchema: ft.outputSchema,
	}
}

// unmarshaler decodes JSON arguments into the tool input value.
type unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

type jsonUnmarshaler struct{}

func (j *jsonUnmarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type unmarshalFunc func(data []byte, v any) error

func (f unmarshalFunc) Unmarshal(data []byte, v any) error {
	return f(data, v)
}
