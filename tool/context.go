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

// ContextKeyToolCallID is the context key type for tool call ID.
// The gateway injects the call ID so that providers can correlate requests
// with responses.
type ContextKeyToolCallID struct{}

// NewContextWithToolCallID returns a context carrying the tool call ID.
func NewContextWithToolCallID(ctx context.Context, toolCallID string) context.Context {
	return context.WithValue(ctx, ContextKeyToolCallID{}, toolCallID)
}

// ToolCallIDFromContext retrieves the tool call ID from context.
// Returns the tool call ID and true if found, empty string and false
// otherwise.
func ToolCallIDFromContext(ctx context.Context) (string, bool) {
	toolCallID, ok := ctx.Value(ContextKeyToolCallID{}).(string)
	return toolCallID, ok
}
