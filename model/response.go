//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package model

import "time"

// Error type constants for ResponseError.
const (
	// ErrorTypeInvalidRequest indicates a malformed request.
	ErrorTypeInvalidRequest = "invalid_request_error"
	// ErrorTypeAPIError indicates a backend API failure.
	ErrorTypeAPIError = "api_error"
	// ErrorTypeNetworkError indicates a transport-level failure.
	ErrorTypeNetworkError = "network_error"
	// ErrorTypeStreamError indicates a failure in the middle of a stream.
	ErrorTypeStreamError = "stream_error"
)

// Object type constants for Response.Object.
const (
	// ObjectTypeChatCompletion is a complete chat response.
	ObjectTypeChatCompletion = "chat.completion"
	// ObjectTypeChatCompletionChunk is a streaming chat response chunk.
	ObjectTypeChatCompletionChunk = "chat.completion.chunk"
	// ObjectTypeToolResponse is a tool execution response.
	ObjectTypeToolResponse = "tool.response"
)

// Choice represents one generated completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`
	// Message is the complete message for non-streaming responses.
	Message Message `json:"message,omitempty"`
	// Delta is the incremental content for streaming responses.
	Delta Message `json:"delta,omitempty"`
	// FinishReason is the reason generation stopped, when provided.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage reports token usage for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the total number of tokens used.
	TotalTokens int `json:"total_tokens"`
}

// ResponseError carries a backend failure inside a Response.
type ResponseError struct {
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Type classifies the error, see the ErrorType constants.
	Type string `json:"type"`
	// Code is the provider-specific error code, when available.
	Code string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return e.Message
}

// Response is a single response from a backend. For streaming requests
// several responses are produced; the last one has Done set.
type Response struct {
	// ID is the unique identifier of the response.
	ID string `json:"id,omitempty"`
	// Object describes the response kind, see the ObjectType constants.
	Object string `json:"object,omitempty"`
	// Created is the unix timestamp the response was created at.
	Created int64 `json:"created,omitempty"`
	// Model is the backend model that produced the response.
	Model string `json:"model,omitempty"`
	// Choices are the generated completion choices.
	Choices []Choice `json:"choices,omitempty"`
	// Usage reports token usage when the backend provides it.
	Usage *Usage `json:"usage,omitempty"`
	// Error is set when the backend failed; Choices are empty in that case.
	Error *ResponseError `json:"error,omitempty"`
	// Timestamp is the local time the response was assembled.
	Timestamp time.Time `json:"timestamp,omitempty"`
	// IsPartial marks streaming chunks.
	IsPartial bool `json:"is_partial,omitempty"`
	// Done marks the final response of a request.
	Done bool `json:"done,omitempty"`
}

// IsError reports whether the response carries a backend failure.
func (r *Response) IsError() bool {
	return r != nil && r.Error != nil
}
