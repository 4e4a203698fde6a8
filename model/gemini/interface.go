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
	"iter"

	"google.golang.org/genai"
)

// Client abstracts the genai client so it can be mocked in tests.
type Client interface {
	// Models returns the models service.
	Models() Models
}

// Models abstracts the genai models service.
type Models interface {
	// GenerateContent generates content in a single call.
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	// GenerateContentStream generates content as a stream of partial responses.
	GenerateContentStream(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) iter.Seq2[*genai.GenerateContentResponse, error]
}

// clientWrapper adapts *genai.Client to the Client interface.
type clientWrapper struct {
	client *genai.Client
}

// Models returns the wrapped models service.
func (c *clientWrapper) Models() Models {
	return &modelsWrapper{models: c.client.Models}
}

// modelsWrapper adapts *genai.Models to the Models interface.
type modelsWrapper struct {
	models *genai.Models
}

// GenerateContent forwards to the underlying genai models service.
func (m *modelsWrapper) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return m.models.GenerateContent(ctx, model, contents, config)
}

// GenerateContentStream forwards to the underlying genai models service.
func (m *modelsWrapper) GenerateContentStream(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) iter.Seq2[*genai.GenerateContentResponse, error] {
	return m.models.GenerateContentStream(ctx, model, contents, config)
}
