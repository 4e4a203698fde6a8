//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides OpenAI-compatible model implementations.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/respjson"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

const (
	functionToolType string = "function"

	//nolint:gosec
	groqAPIKeyName     string = "GROQ_API_KEY"
	defaultGroqBaseURL string = "https://api.groq.com/openai/v1"

	//nolint:gosec
	deepSeekAPIKeyName     string = "DEEPSEEK_API_KEY"
	defaultDeepSeekBaseURL string = "https://api.deepseek.com"
)

// Variant represents different model variants with specific behaviors.
type Variant string

const (
	// VariantOpenAI is the default OpenAI variant.
	VariantOpenAI Variant = "openai"
	// VariantGroq is the Groq variant with its OpenAI-compatible endpoint.
	VariantGroq Variant = "groq"
	// VariantDeepSeek is the DeepSeek variant with specific base_url handling.
	VariantDeepSeek Variant = "deepseek"
)

// variantConfig holds configuration for different variants.
type variantConfig struct {
	// Default base URL for this variant.
	defaultBaseURL string
	// Default API key name for this variant.
	apiKeyName string
}

// variantConfigs maps variant names to their configurations.
var variantConfigs = map[Variant]variantConfig{
	VariantOpenAI: {},
	VariantGroq: {
		defaultBaseURL: defaultGroqBaseURL,
		apiKeyName:     groqAPIKeyName,
	},
	VariantDeepSeek: {
		defaultBaseURL: defaultDeepSeekBaseURL,
		apiKeyName:     deepSeekAPIKeyName,
	},
}

// Model implements the model.Model interface for OpenAI-compatible APIs.
type Model struct {
	client               openai.Client
	name                 string
	baseURL              string
	apiKey               string
	channelBufferSize    int
	chatRequestCallback  ChatRequestCallbackFunc
	chatResponseCallback ChatResponseCallbackFunc
	chatChunkCallback    ChatChunkCallbackFunc
	extraFields          map[string]any
	variant              Variant
}

// New creates a new OpenAI-like model.
func New(name string, opts ...Option) *Model {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Set default API key and base URL if not specified.
	if cfg, ok := variantConfigs[o.Variant]; ok {
		if val, ok := os.LookupEnv(cfg.apiKeyName); ok && o.APIKey == "" {
			o.APIKey = val
		}
		if cfg.defaultBaseURL != "" && o.BaseURL == "" {
			o.BaseURL = cfg.defaultBaseURL
		}
	}

	var clientOpts []openaiopt.RequestOption

	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}

	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}

	clientOpts = append(clientOpts, openaiopt.WithHTTPClient(model.DefaultNewHTTPClient(o.HTTPClientOptions...)))
	clientOpts = append(clientOpts, o.OpenAIOptions...)

	client := openai.NewClient(clientOpts...)

	return &Model{
		client:               client,
		name:                 name,
		baseURL:              o.BaseURL,
		apiKey:               o.APIKey,
		channelBufferSize:    o.ChannelBufferSize,
		chatRequestCallback:  o.ChatRequestCallback,
		chatResponseCallback: o.ChatResponseCallback,
		chatChunkCallback:    o.ChatChunkCallback,
		extraFields:          o.ExtraFields,
		variant:              o.Variant,
	}
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name: m.name,
	}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(
	ctx context.Context,
	request *model.Request,
) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}

	responseChan := make(chan *model.Response, m.channelBufferSize)

	chatRequest, opts := m.buildChatRequest(request)

	go func() {
		defer close(responseChan)

		if m.chatRequestCallback != nil {
			m.chatRequestCallback(ctx, &chatRequest)
		}

		if request.Stream {
			m.handleStreamingResponse(ctx, chatRequest, responseChan, opts...)
		} else {
			m.handleNonStreamingResponse(ctx, chatRequest, responseChan, opts...)
		}
	}()

	return responseChan, nil
}

// buildChatRequest converts our Request to OpenAI request params and options.
func (m *Model) buildChatRequest(request *model.Request) (openai.ChatCompletionNewParams, []openaiopt.RequestOption) {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: m.convertMessages(request.Messages),
		Tools:    m.convertTools(request.Tools),
	}

	// MaxTokens is deprecated and not compatible with o-series models.
	// Use MaxCompletionTokens instead.
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		chatRequest.TopP = openai.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		// Use the first stop string for simplicity.
		chatRequest.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(request.Stop[0]),
		}
	}

	var opts []openaiopt.RequestOption
	// Add extra fields to the request body.
	for key, value := range m.extraFields {
		opts = append(opts, openaiopt.WithJSONSet(key, value))
	}

	// Add streaming options if needed.
	if request.Stream {
		chatRequest.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}
	return chatRequest, opts
}

// convertMessages converts our Message format to OpenAI's format.
func (m *Model) convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		case model.RoleAssistant:
			assistantMsg := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: m.convertToolCalls(msg.ToolCalls),
			}
			// Tool-call-only messages carry no content at all.
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfAssistant: assistantMsg,
			}
		case model.RoleTool:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.ToolID,
				},
			}
		default: // Default to user message if role is unknown.
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		}
	}

	return result
}

func (m *Model) convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Function.Name,
				Arguments: string(toolCall.Function.Arguments),
			},
		})
	}
	return result
}

func (m *Model) convertTools(tools map[string]tool.Tool) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, tool := range tools {
		declaration := tool.Declaration()
		// Convert the InputSchema to JSON to correctly map to OpenAI's expected format.
		schemaBytes, err := json.Marshal(declaration.InputSchema)
		if err != nil {
			log.Errorf("failed to marshal tool schema for %s: %v", declaration.Name, err)
			continue
		}
		var parameters shared.FunctionParameters
		if err := json.Unmarshal(schemaBytes, &parameters); err != nil {
			log.Errorf("failed to unmarshal tool schema for %s: %v", declaration.Name, err)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        declaration.Name,
				Description: openai.String(buildToolDescription(declaration)),
				Parameters:  parameters,
			},
		})
	}
	return result
}

// buildToolDescription builds the description for a tool.
// It appends the output schema to the description.
func buildToolDescription(declaration *tool.Declaration) string {
	desc := declaration.Description
	if declaration.OutputSchema == nil {
		return desc
	}
	schemaJSON, err := json.Marshal(declaration.OutputSchema)
	if err != nil {
		log.Errorf("marshal output schema for tool %s: %v", declaration.Name, err)
		return desc
	}
	desc += "\nOutput schema: " + string(schemaJSON)
	return desc
}

// handleStreamingResponse handles streaming chat completion responses.
func (m *Model) handleStreamingResponse(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
	responseChan chan<- *model.Response,
	opts ...openaiopt.RequestOption,
) {
	stream := m.client.Chat.Completions.NewStreaming(
		ctx, chatRequest, opts...)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	// Track ID -> Index mapping.
	idToIndexMap := make(map[string]int)

	for stream.Next() {
		chunk := stream.Current()

		// Skip empty chunks.
		if shouldSkipEmptyChunk(chunk) {
			continue
		}

		// Track ID -> Index mapping when ID is present (first chunk of each tool call).
		updateToolCallIndexMapping(chunk, idToIndexMap)

		// Always accumulate for correctness; tool call deltas are assembled
		// after the stream completes.
		acc.AddChunk(sanitizeChunkForAccumulator(chunk))

		// Suppress chunks that carry no meaningful visible delta (including
		// tool_call deltas, which are surfaced only in the final response).
		if shouldSuppressChunk(chunk) {
			continue
		}

		if m.chatChunkCallback != nil {
			m.chatChunkCallback(ctx, &chatRequest, &chunk)
		}

		response := m.createPartialResponse(chunk)

		select {
		case responseChan <- response:
		case <-ctx.Done():
			return
		}
	}

	// Send final response with usage information if available.
	m.sendFinalResponse(ctx, stream, acc, idToIndexMap, responseChan)
}

// sanitizeChunkForAccumulator returns a defensive copy of the given chunk
// that clears JSON.ToolCalls metadata when it is marked present but the
// typed ToolCalls slice is empty on a finish_reason chunk, which would
// otherwise cause an out-of-range access inside the SDK accumulator.
func sanitizeChunkForAccumulator(chunk openai.ChatCompletionChunk) openai.ChatCompletionChunk {
	if len(chunk.Choices) == 0 {
		return chunk
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	if choice.FinishReason == "" ||
		!delta.JSON.ToolCalls.Valid() ||
		len(delta.ToolCalls) != 0 {
		return chunk
	}

	sanitized := chunk
	sanitized.Choices = make([]openai.ChatCompletionChunkChoice, len(chunk.Choices))
	copy(sanitized.Choices, chunk.Choices)
	sanitized.Choices[0].Delta.JSON.ToolCalls = respjson.Field{}

	return sanitized
}

// updateToolCallIndexMapping updates the tool call index mapping.
func updateToolCallIndexMapping(chunk openai.ChatCompletionChunk, idToIndexMap map[string]int) {
	if len(chunk.Choices) > 0 && len(chunk.Choices[0].Delta.ToolCalls) > 0 {
		toolCall := chunk.Choices[0].Delta.ToolCalls[0]
		index := int(toolCall.Index)
		if toolCall.ID != "" {
			idToIndexMap[toolCall.ID] = index
		}
	}
}

// shouldSuppressChunk returns true when the chunk contains no meaningful
// visible delta (no content, no finish reason, or only tool call deltas).
func shouldSuppressChunk(chunk openai.ChatCompletionChunk) bool {
	if len(chunk.Choices) == 0 {
		return true
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		return false
	}

	// Tool call deltas are only exposed in the final aggregated response
	// to avoid emitting noisy blank chunks.
	if delta.JSON.ToolCalls.Valid() || len(delta.ToolCalls) > 0 {
		return true
	}

	if choice.FinishReason != "" {
		return false
	}
	return true
}

// shouldSkipEmptyChunk returns true when the chunk contains no meaningful delta.
// This is a defensive check against malformed responses from certain providers
// that may return chunks with valid JSON fields but empty actual content.
func shouldSkipEmptyChunk(chunk openai.ChatCompletionChunk) bool {
	// Chunks that carry a finish reason are meaningful and should not be
	// skipped, even if they have no content or usage. This ensures that
	// streaming clients can observe termination semantics.
	if len(chunk.Choices) > 0 &&
		chunk.Choices[0].FinishReason != "" {
		return false
	}

	// No choices available, don't skip (usage-only chunks land here).
	if len(chunk.Choices) == 0 {
		return false
	}

	delta := chunk.Choices[0].Delta

	// Content or refusal indicates meaningful output.
	if delta.JSON.Content.Valid() || delta.JSON.Refusal.Valid() {
		return false
	}

	// Tool calls are only meaningful when the array is non-empty.
	if delta.JSON.ToolCalls.Valid() {
		return len(delta.ToolCalls) == 0
	}

	if chunk.Usage.CompletionTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.TotalTokens > 0 {
		return false
	}

	// Otherwise there is no meaningful delta, skip the chunk.
	return true
}

// createPartialResponse creates a partial response from a chunk.
func (m *Model) createPartialResponse(chunk openai.ChatCompletionChunk) *model.Response {
	response := &model.Response{
		ID: chunk.ID,
		// Normalize object for chunks; upstream may emit empty object for toolcall deltas.
		Object: func() string {
			if chunk.Object != "" {
				return string(chunk.Object)
			}
			return model.ObjectTypeChatCompletionChunk
		}(),
		Created:   chunk.Created,
		Model:     chunk.Model,
		Timestamp: time.Now(),
		Done:      false,
		IsPartial: true,
	}

	// Convert choices for partial responses (content streaming).
	if len(chunk.Choices) > 0 {
		response.Choices = make([]model.Choice, 1)
		response.Choices[0].Delta = model.Message{
			Role:    model.RoleAssistant,
			Content: chunk.Choices[0].Delta.Content,
		}

		// Handle finish reason - FinishReason is a plain string.
		if chunk.Choices[0].FinishReason != "" {
			finishReason := chunk.Choices[0].FinishReason
			response.Choices[0].FinishReason = &finishReason
		}
	}

	return response
}

// sendFinalResponse sends the final response with accumulated data.
func (m *Model) sendFinalResponse(
	ctx context.Context,
	stream *ssestream.Stream[openai.ChatCompletionChunk],
	acc openai.ChatCompletionAccumulator,
	idToIndexMap map[string]int,
	responseChan chan<- *model.Response,
) {
	if err := stream.Err(); err != nil {
		errorResponse := &model.Response{
			Error: &model.ResponseError{
				Message: err.Error(),
				Type:    model.ErrorTypeStreamError,
			},
			Timestamp: time.Now(),
			Done:      true,
		}

		select {
		case responseChan <- errorResponse:
		case <-ctx.Done():
		}
		return
	}

	// Check accumulated tool calls (batch processing after streaming is complete).
	var hasToolCall bool
	var accumulatedToolCalls []model.ToolCall

	if len(acc.Choices) > 0 && len(acc.Choices[0].Message.ToolCalls) > 0 {
		hasToolCall = true
		accumulatedToolCalls = m.processAccumulatedToolCalls(acc, idToIndexMap)
	}

	finalResponse := m.createFinalResponse(acc, hasToolCall, accumulatedToolCalls)

	select {
	case responseChan <- finalResponse:
	case <-ctx.Done():
	}
}

// processAccumulatedToolCalls processes accumulated tool calls.
func (m *Model) processAccumulatedToolCalls(
	acc openai.ChatCompletionAccumulator,
	idToIndexMap map[string]int,
) []model.ToolCall {
	accumulatedToolCalls := make([]model.ToolCall, 0, len(acc.Choices[0].Message.ToolCalls))

	for i, toolCall := range acc.Choices[0].Message.ToolCalls {
		// Providers that start tool call indices at 1 leave an empty entry
		// at index 0 in the accumulator, skip it.
		if toolCall.Function.Name == "" && toolCall.ID == "" {
			continue
		}

		// Use the original index from ID->Index mapping if available, otherwise use loop index.
		originalIndex := i
		if toolCall.ID != "" {
			if mappedIndex, exists := idToIndexMap[toolCall.ID]; exists {
				originalIndex = mappedIndex
			}
		}

		// Some providers may omit the tool_call ID. Synthesize a stable ID
		// from the index to ensure proper pairing with tool responses.
		synthesizedID := toolCall.ID
		if synthesizedID == "" {
			synthesizedID = fmt.Sprintf("auto_call_%d", originalIndex)
		}

		accumulatedToolCalls = append(accumulatedToolCalls, model.ToolCall{
			Index: func() *int { idx := originalIndex; return &idx }(),
			ID:    synthesizedID,
			Type:  functionToolType,
			Function: model.FunctionDefinitionParam{
				Name:      toolCall.Function.Name,
				Arguments: []byte(toolCall.Function.Arguments),
			},
		})
	}

	return accumulatedToolCalls
}

// createFinalResponse creates the final response with accumulated data.
func (m *Model) createFinalResponse(
	acc openai.ChatCompletionAccumulator,
	hasToolCall bool,
	accumulatedToolCalls []model.ToolCall,
) *model.Response {
	usage := completionUsageToModelUsage(acc.Usage)
	finalResponse := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		ID:        acc.ID,
		Created:   acc.Created,
		Model:     acc.Model,
		Choices:   make([]model.Choice, len(acc.Choices)),
		Usage:     &usage,
		Timestamp: time.Now(),
		Done:      !hasToolCall,
		IsPartial: false,
	}

	for i, choice := range acc.Choices {
		finalResponse.Choices[i] = model.Choice{
			Index: int(choice.Index),
			Message: model.Message{
				Role:    model.RoleAssistant,
				Content: choice.Message.Content,
			},
		}

		// Usually only the first choice contains tool calls.
		if hasToolCall && i == 0 {
			finalResponse.Choices[i].Message.ToolCalls = accumulatedToolCalls
		}

		// Propagate finish reason from the accumulated choice so that the final
		// aggregated response exposes the same termination semantics as the
		// underlying provider.
		if choice.FinishReason != "" {
			finishReason := choice.FinishReason
			finalResponse.Choices[i].FinishReason = &finishReason
		}
	}

	return finalResponse
}

// handleNonStreamingResponse handles non-streaming chat completion responses.
func (m *Model) handleNonStreamingResponse(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
	responseChan chan<- *model.Response,
	opts ...openaiopt.RequestOption,
) {
	chatCompletion, err := m.client.Chat.Completions.New(
		ctx, chatRequest, opts...)
	if err != nil {
		errorResponse := &model.Response{
			Error: &model.ResponseError{
				Message: err.Error(),
				Type:    model.ErrorTypeAPIError,
			},
			Timestamp: time.Now(),
			Done:      true,
		}

		select {
		case responseChan <- errorResponse:
		case <-ctx.Done():
		}
		return
	}
	// Call response callback on successful completion.
	if m.chatResponseCallback != nil {
		m.chatResponseCallback(ctx, &chatRequest, chatCompletion)
	}

	response := &model.Response{
		ID:        chatCompletion.ID,
		Object:    string(chatCompletion.Object),
		Created:   chatCompletion.Created,
		Model:     chatCompletion.Model,
		Timestamp: time.Now(),
		Done:      true,
	}

	// Convert choices.
	if len(chatCompletion.Choices) > 0 {
		response.Choices = make([]model.Choice, len(chatCompletion.Choices))
		for i, choice := range chatCompletion.Choices {
			response.Choices[i] = model.Choice{
				Index: int(choice.Index),
				Message: model.Message{
					Role:    model.RoleAssistant,
					Content: choice.Message.Content,
				},
			}

			if len(choice.Message.ToolCalls) > 0 {
				response.Choices[i].Message.ToolCalls = make([]model.ToolCall, len(choice.Message.ToolCalls))
				for j, toolCall := range choice.Message.ToolCalls {
					synthesizedID := toolCall.ID
					if synthesizedID == "" {
						// Synthesize ID for providers that omit it.
						synthesizedID = fmt.Sprintf("auto_call_%d", j)
					}
					response.Choices[i].Message.ToolCalls[j] = model.ToolCall{
						ID:   synthesizedID,
						Type: string(toolCall.Type),
						Function: model.FunctionDefinitionParam{
							Name:      toolCall.Function.Name,
							Arguments: []byte(toolCall.Function.Arguments),
						},
					}
				}
			}

			// Handle finish reason - FinishReason is a plain string.
			if choice.FinishReason != "" {
				finishReason := choice.FinishReason
				response.Choices[i].FinishReason = &finishReason
			}
		}
	}

	// Convert usage information.
	if chatCompletion.Usage.PromptTokens > 0 || chatCompletion.Usage.CompletionTokens > 0 {
		usage := completionUsageToModelUsage(chatCompletion.Usage)
		response.Usage = &usage
	}

	select {
	case responseChan <- response:
	case <-ctx.Done():
	}
}

// completionUsageToModelUsage converts openai.CompletionUsage to model.Usage.
func completionUsageToModelUsage(usage openai.CompletionUsage) model.Usage {
	return model.Usage{
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	}
}
