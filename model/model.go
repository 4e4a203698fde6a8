//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the request/response contract between agents and
// LLM backends, together with the Model interface implemented by the
// concrete backends under model/openai and model/gemini.
package model

import "context"

// Model is the interface implemented by LLM backends.
//
// GenerateContent sends one request and returns a channel of responses.
// Non-streaming backends send exactly one response and close the channel.
// Streaming backends send partial responses followed by a final one with
// Done set. Backend failures are reported through Response.Error rather
// than a Go error; the error return covers request construction problems
// only.
type Model interface {
	// GenerateContent generates content from the given request.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info describes a model.
type Info struct {
	// Name is the model identifier sent to the backend, e.g. "llama3-8b-8192".
	Name string
}
