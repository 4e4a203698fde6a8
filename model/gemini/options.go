//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-crew-go/model"
)

// defaultChannelBufferSize is the default buffer size for response channels.
const defaultChannelBufferSize = 256

// ChatRequestCallbackFunc is called with the converted request contents
// before they are sent to the Gemini API.
type ChatRequestCallbackFunc func(ctx context.Context, chatRequest []*genai.Content)

// ChatResponseCallbackFunc is called with the complete response of a
// non-streaming call.
type ChatResponseCallbackFunc func(ctx context.Context, chatRequest []*genai.Content,
	generateConfig *genai.GenerateContentConfig, chatResponse *genai.GenerateContentResponse)

// ChatChunkCallbackFunc is called with each raw chunk of a streaming call.
type ChatChunkCallbackFunc func(ctx context.Context, chatRequest []*genai.Content,
	generateConfig *genai.GenerateContentConfig, chatChunk *genai.GenerateContentResponse)

// ChatStreamCompleteCallbackFunc is called with the accumulated final
// response when a stream ends.
type ChatStreamCompleteCallbackFunc func(ctx context.Context, chatRequest []*genai.Content,
	generateConfig *genai.GenerateContentConfig, finalResponse *model.Response)

// options contains configuration for creating a Gemini model.
type options struct {
	// channelBufferSize is the buffer size for response channels.
	channelBufferSize int
	// chatRequestCallback is called before sending a request.
	chatRequestCallback ChatRequestCallbackFunc
	// chatResponseCallback is called on a non-streaming response.
	chatResponseCallback ChatResponseCallbackFunc
	// chatChunkCallback is called on each streaming chunk.
	chatChunkCallback ChatChunkCallbackFunc
	// chatStreamCompleteCallback is called when a stream completes.
	chatStreamCompleteCallback ChatStreamCompleteCallbackFunc
	// geminiClientConfig configures the underlying genai client.
	geminiClientConfig *genai.ClientConfig
}

var defaultOptions = options{
	channelBufferSize: defaultChannelBufferSize,
}

// Option configures a Gemini model.
type Option func(*options)

// WithChannelBufferSize sets the buffer size for response channels.
func WithChannelBufferSize(size int) Option {
	return func(opts *options) {
		if size <= 0 {
			size = defaultChannelBufferSize
		}
		opts.channelBufferSize = size
	}
}

// WithChatRequestCallback sets the chat request callback.
func WithChatRequestCallback(callback ChatRequestCallbackFunc) Option {
	return func(opts *options) {
		opts.chatRequestCallback = callback
	}
}

// WithChatResponseCallback sets the chat response callback.
func WithChatResponseCallback(callback ChatResponseCallbackFunc) Option {
	return func(opts *options) {
		opts.chatResponseCallback = callback
	}
}

// WithChatChunkCallback sets the chat chunk callback.
func WithChatChunkCallback(callback ChatChunkCallbackFunc) Option {
	return func(opts *options) {
		opts.chatChunkCallback = callback
	}
}

// WithChatStreamCompleteCallback sets the stream completion callback.
func WithChatStreamCompleteCallback(callback ChatStreamCompleteCallbackFunc) Option {
	return func(opts *options) {
		opts.chatStreamCompleteCallback = callback
	}
}

// WithGeminiClientConfig sets the genai client configuration, including
// the API key and backend selection.
func WithGeminiClientConfig(config *genai.ClientConfig) Option {
	return func(opts *options) {
		opts.geminiClientConfig = config
	}
}
