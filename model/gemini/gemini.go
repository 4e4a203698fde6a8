//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides the Gemini model implementation backed by the
// Google genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// Model implements the model.Model interface for the Gemini API.
type Model struct {
	client                     Client
	name                       string
	channelBufferSize          int
	chatRequestCallback        ChatRequestCallbackFunc
	chatResponseCallback       ChatResponseCallbackFunc
	chatChunkCallback          ChatChunkCallbackFunc
	chatStreamCompleteCallback ChatStreamCompleteCallbackFunc
}

// New creates a Gemini model backed by a genai client.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	client, err := genai.NewClient(ctx, o.geminiClientConfig)
	if err != nil {
		return nil, err
	}
	return &Model{
		client:                     &clientWrapper{client: client},
		name:                       name,
		channelBufferSize:          o.channelBufferSize,
		chatRequestCallback:        o.chatRequestCallback,
		chatResponseCallback:       o.chatResponseCallback,
		chatChunkCallback:          o.chatChunkCallback,
		chatStreamCompleteCallback: o.chatStreamCompleteCallback,
	}, nil
}

// Info returns basic information about the model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent sends the request to the Gemini API and streams responses
// through the returned channel. The channel is closed when generation ends.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	responseChan := make(chan *model.Response, m.channelBufferSize)
	contents := m.convertMessages(request.Messages)
	config := m.buildChatConfig(request)
	if m.chatRequestCallback != nil {
		m.chatRequestCallback(ctx, contents)
	}
	go func() {
		defer close(responseChan)
		if request.Stream {
			m.handleStreamingResponse(ctx, contents, config, responseChan)
			return
		}
		m.handleNonStreamingResponse(ctx, contents, config, responseChan)
	}()
	return responseChan, nil
}

// handleNonStreamingResponse performs a single generate call.
func (m *Model) handleNonStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	responseChan chan<- *model.Response,
) {
	response, err := m.client.Models().GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		responseChan <- errorResponse(model.ErrorTypeAPIError, err.Error())
		return
	}
	if m.chatResponseCallback != nil {
		m.chatResponseCallback(ctx, contents, config, response)
	}
	responseChan <- m.buildFinalResponse(response)
}

// handleStreamingResponse iterates the stream, emitting a partial response
// per chunk and a final accumulated response at the end.
func (m *Model) handleStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	responseChan chan<- *model.Response,
) {
	acc := NewAccumulator(m.name)
	for chunk, err := range m.client.Models().GenerateContentStream(ctx, m.name, contents, config) {
		if err != nil {
			responseChan <- errorResponse(model.ErrorTypeAPIError, err.Error())
			return
		}
		if m.chatChunkCallback != nil {
			m.chatChunkCallback(ctx, contents, config, chunk)
		}
		partial := m.buildChunkResponse(chunk)
		acc.Accumulate(partial)
		select {
		case responseChan <- partial:
		case <-ctx.Done():
			return
		}
	}
	final := acc.BuildResponse()
	if m.chatStreamCompleteCallback != nil {
		m.chatStreamCompleteCallback(ctx, contents, config, final)
	}
	select {
	case responseChan <- final:
	case <-ctx.Done():
	}
}

// buildChunkResponse converts a stream chunk into a partial response. Content
// is carried on Delta only so consumers do not double count it against the
// final accumulated message.
func (m *Model) buildChunkResponse(response *genai.GenerateContentResponse) *model.Response {
	message, finishReason := m.convertContentBlock(response.Candidates)
	rsp := m.buildChatCompletionResponse(response, model.ObjectTypeChatCompletionChunk, finishReason)
	rsp.IsPartial = true
	rsp.Done = false
	rsp.Choices[0].Delta = message
	return rsp
}

// buildFinalResponse converts a complete generate response.
func (m *Model) buildFinalResponse(response *genai.GenerateContentResponse) *model.Response {
	message, finishReason := m.convertContentBlock(response.Candidates)
	rsp := m.buildChatCompletionResponse(response, model.ObjectTypeChatCompletion, finishReason)
	rsp.Choices[0].Message = message
	// Tool call responses leave the turn open for tool execution.
	rsp.Done = len(message.ToolCalls) == 0
	return rsp
}

// buildChatCompletionResponse fills the response envelope shared by chunk
// and final responses.
func (m *Model) buildChatCompletionResponse(
	response *genai.GenerateContentResponse,
	object string,
	finishReason string,
) *model.Response {
	rsp := &model.Response{
		ID:        response.ResponseID,
		Object:    object,
		Created:   time.Now().Unix(),
		Model:     response.ModelVersion,
		Timestamp: time.Now(),
		Done:      true,
		Choices: []model.Choice{{
			Index: 0,
		}},
	}
	if !response.CreateTime.IsZero() {
		rsp.Created = response.CreateTime.Unix()
	}
	if rsp.Model == "" {
		rsp.Model = m.name
	}
	if finishReason != "" {
		reason := finishReason
		rsp.Choices[0].FinishReason = &reason
	}
	if usage := response.UsageMetadata; usage != nil {
		rsp.Usage = &model.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return rsp
}

// convertContentBlock flattens candidate parts into one assistant message.
func (m *Model) convertContentBlock(candidates []*genai.Candidate) (model.Message, string) {
	var (
		textBuilder  strings.Builder
		toolCalls    []model.ToolCall
		finishReason string
	)
	for _, candidate := range candidates {
		if candidate.FinishReason != "" {
			finishReason = string(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				textBuilder.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					log.Errorf("Failed to marshal function call args for %s: %v", part.FunctionCall.Name, err)
					continue
				}
				toolCalls = append(toolCalls, model.ToolCall{
					ID: part.FunctionCall.ID,
					Function: model.FunctionDefinitionParam{
						Name:      part.FunctionCall.Name,
						Arguments: args,
					},
				})
			}
		}
	}
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   textBuilder.String(),
		ToolCalls: toolCalls,
	}, finishReason
}

// buildChatConfig maps generation parameters onto the genai config.
func (m *Model) buildChatConfig(request *model.Request) *genai.GenerateContentConfig {
	chatConfig := &genai.GenerateContentConfig{
		Tools: m.convertTools(request.Tools),
	}
	// AUTO lets the model decide between calling a tool and answering
	// with text.
	if len(request.Tools) > 0 {
		chatConfig.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	if request.MaxTokens != nil {
		chatConfig.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		chatConfig.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		chatConfig.TopP = genai.Ptr(float32(*request.TopP))
	}
	if len(request.Stop) > 0 {
		chatConfig.StopSequences = request.Stop
	}
	return chatConfig
}

// convertTools converts tool declarations to genai function declarations.
func (m *Model) convertTools(tools map[string]tool.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		declaration := t.Declaration()
		if declaration == nil {
			continue
		}
		fn := &genai.FunctionDeclaration{
			Name:        declaration.Name,
			Description: declaration.Description,
		}
		if declaration.InputSchema != nil {
			fn.ParametersJsonSchema = declaration.InputSchema
		}
		if declaration.OutputSchema != nil {
			fn.ResponseJsonSchema = declaration.OutputSchema
		}
		declarations = append(declarations, fn)
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertMessages converts conversation messages to genai contents. Gemini
// has no dedicated tool role, so tool results travel as user text.
func (m *Model) convertMessages(messages []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		if message.Content == "" {
			continue
		}
		role := genai.RoleUser
		if message.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, genai.Role(role)))
	}
	return contents
}

// errorResponse builds a terminal error response.
func errorResponse(errorType, message string) *model.Response {
	return &model.Response{
		Timestamp: time.Now(),
		Done:      true,
		Error: &model.ResponseError{
			Message: message,
			Type:    errorType,
		},
	}
}
