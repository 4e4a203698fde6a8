//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-crew-go/tool"
)

type echoInput struct {
	Text   string `json:"text" jsonschema:"description=Text to echo back,required"`
	Repeat int    `json:"repeat,omitempty"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func echo(_ context.Context, in echoInput) (echoOutput, error) {
	out := in.Text
	for i := 1; i < in.Repeat; i++ {
		out += in.Text
	}
	return echoOutput{Text: out}, nil
}

func TestFunctionToolCall(t *testing.T) {
	ft := NewFunctionTool(echo,
		WithName("echo"),
		WithDescription("Echoes the provided text"),
	)

	result, err := ft.Call(context.Background(), []byte(`{"text":"hi","repeat":2}`))
	require.NoError(t, err)
	out, ok := result.(echoOutput)
	require.True(t, ok)
	assert.Equal(t, "hihi", out.Text)
}

func TestFunctionToolCallEmptyArgs(t *testing.T) {
	ft := NewFunctionTool(echo, WithName("echo"), WithDescription("echo"))

	result, err := ft.Call(context.Background(), nil)
	require.NoError(t, err)
	out, ok := result.(echoOutput)
	require.True(t, ok)
	assert.Empty(t, out.Text)
}

func TestFunctionToolCallInvalidArgs(t *testing.T) {
	ft := NewFunctionTool(echo, WithName("echo"), WithDescription("echo"))

	_, err := ft.Call(context.Background(), []byte(`{"text":42}`))
	require.Error(t, err)
	assert.True(t, tool.IsValidationError(err))
}

func TestFunctionToolPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	ft := NewFunctionTool(func(_ context.Context, _ echoInput) (echoOutput, error) {
		return echoOutput{}, wantErr
	}, WithName("fails"), WithDescription("always fails"))

	_, err := ft.Call(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, wantErr)
}

func TestFunctionToolDeclaration(t *testing.T) {
	ft := NewFunctionTool(echo,
		WithName("echo"),
		WithDescription("Echoes the provided text"),
	)

	decl := ft.Declaration()
	require.NotNil(t, decl)
	assert.Equal(t, "echo", decl.Name)
	assert.Equal(t, "Echoes the provided text", decl.Description)

	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	require.Contains(t, decl.InputSchema.Properties, "text")
	assert.Equal(t, "Text to echo back", decl.InputSchema.Properties["text"].Description)
	assert.Contains(t, decl.InputSchema.Required, "text")
	assert.NotContains(t, decl.InputSchema.Required, "repeat")

	require.NotNil(t, decl.OutputSchema)
	assert.Equal(t, "object", decl.OutputSchema.Type)
}

func TestFunctionToolCustomSchemas(t *testing.T) {
	in := &tool.Schema{Type: "object", Description: "custom input"}
	out := &tool.Schema{Type: "object", Description: "custom output"}
	ft := NewFunctionTool(echo,
		WithName("echo"),
		WithDescription("echo"),
		WithInputSchema(in),
		WithOutputSchema(out),
	)

	decl := ft.Declaration()
	assert.Same(t, in, decl.InputSchema)
	assert.Same(t, out, decl.OutputSchema)
}

func TestFunctionToolCustomUnmarshaler(t *testing.T) {
	called := false
	ft := NewFunctionTool(echo,
		WithName("echo"),
		WithDescription("echo"),
		WithUnmarshaler(func(data []byte, v any) error {
			called = true
			in, ok := v.(*echoInput)
			if !ok {
				return errors.New("unexpected target type")
			}
			in.Text = string(data)
			return nil
		}),
	)

	result, err := ft.Call(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, echoOutput{Text: "raw"}, result)
}
