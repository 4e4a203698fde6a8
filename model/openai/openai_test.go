//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	openaigo "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		opts      []Option
	}{
		{
			name:      "valid openai model",
			modelName: "gpt-4o-mini",
			opts: []Option{
				WithAPIKey("test-key"),
			},
		},
		{
			name:      "valid model with base url",
			modelName: "custom-model",
			opts: []Option{
				WithAPIKey("test-key"),
				WithBaseURL("https://api.custom.com"),
			},
		},
		{
			name:      "empty api key",
			modelName: "gpt-4o-mini",
			opts: []Option{
				WithAPIKey(""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.modelName, tt.opts...)
			if m == nil {
				t.Fatal("expected model to be created, got nil")
			}

			o := options{}
			for _, opt := range tt.opts {
				opt(&o)
			}

			if m.name != tt.modelName {
				t.Errorf("expected model name %s, got %s", tt.modelName, m.name)
			}

			if m.apiKey != o.APIKey {
				t.Errorf("expected api key %s, got %s", o.APIKey, m.apiKey)
			}

			if m.baseURL != o.BaseURL {
				t.Errorf("expected base url %s, got %s", o.BaseURL, m.baseURL)
			}

			if got := m.Info().Name; got != tt.modelName {
				t.Errorf("Info().Name = %s, want %s", got, tt.modelName)
			}
		})
	}
}

func TestNew_VariantDefaults(t *testing.T) {
	t.Run("groq defaults", func(t *testing.T) {
		t.Setenv(groqAPIKeyName, "groq-test-key")

		m := New("llama-3.3-70b-versatile", WithVariant(VariantGroq))
		if m.baseURL != defaultGroqBaseURL {
			t.Errorf("expected base url %s, got %s", defaultGroqBaseURL, m.baseURL)
		}
		if m.apiKey != "groq-test-key" {
			t.Errorf("expected api key from env, got %s", m.apiKey)
		}
		if m.variant != VariantGroq {
			t.Errorf("expected variant %s, got %s", VariantGroq, m.variant)
		}
	})

	t.Run("deepseek defaults", func(t *testing.T) {
		t.Setenv(deepSeekAPIKeyName, "ds-test-key")

		m := New("deepseek-chat", WithVariant(VariantDeepSeek))
		if m.baseURL != defaultDeepSeekBaseURL {
			t.Errorf("expected base url %s, got %s", defaultDeepSeekBaseURL, m.baseURL)
		}
		if m.apiKey != "ds-test-key" {
			t.Errorf("expected api key from env, got %s", m.apiKey)
		}
	})

	t.Run("explicit options win over variant defaults", func(t *testing.T) {
		t.Setenv(groqAPIKeyName, "groq-env-key")

		m := New("llama-3.3-70b-versatile",
			WithVariant(VariantGroq),
			WithAPIKey("explicit-key"),
			WithBaseURL("https://groq.internal.example.com"),
		)
		if m.apiKey != "explicit-key" {
			t.Errorf("expected explicit api key, got %s", m.apiKey)
		}
		if m.baseURL != "https://groq.internal.example.com" {
			t.Errorf("expected explicit base url, got %s", m.baseURL)
		}
	})
}

func TestModel_GenContent_NilReq(t *testing.T) {
	m := New("test-model", WithAPIKey("test-key"))

	ctx := context.Background()
	_, err := m.GenerateContent(ctx, nil)

	if err == nil {
		t.Fatal("expected error for nil request, got nil")
	}

	if err.Error() != "request cannot be nil" {
		t.Errorf("expected 'request cannot be nil', got %s", err.Error())
	}
}

// newTestModel creates a model pointed at a fake OpenAI-compatible server.
func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("test-model",
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithOpenAIOptions(openaiopt.WithMaxRetries(0)),
	)
}

// collectResponses drains the response channel within a deadline.
func collectResponses(t *testing.T, ch <-chan *model.Response) []*model.Response {
	t.Helper()
	var responses []*model.Response
	timeout := time.After(10 * time.Second)
	for {
		select {
		case rsp, ok := <-ch:
			if !ok {
				return responses
			}
			responses = append(responses, rsp)
		case <-timeout:
			t.Fatal("timed out waiting for responses")
		}
	}
}

func TestModel_GenContent_NonStreaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello there"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`)
	})

	request := &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("You are a helpful assistant."),
			model.NewUserMessage("Say hello."),
		},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}

	rsp := responses[0]
	if rsp.Error != nil {
		t.Fatalf("unexpected error: %v", rsp.Error)
	}
	if !rsp.Done || rsp.IsPartial {
		t.Errorf("expected final non-partial response, got done=%v partial=%v", rsp.Done, rsp.IsPartial)
	}
	if got := rsp.Choices[0].Message.Content; got != "Hello there" {
		t.Errorf("content = %q, want %q", got, "Hello there")
	}
	if rsp.Choices[0].Message.Role != model.RoleAssistant {
		t.Errorf("role = %s, want assistant", rsp.Choices[0].Message.Role)
	}
	if rsp.Usage == nil || rsp.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v, want total 12", rsp.Usage)
	}
	if rsp.Choices[0].FinishReason == nil || *rsp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %v, want stop", rsp.Choices[0].FinishReason)
	}
}

func TestModel_GenContent_NonStreamingToolCalls(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-tc",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "save_file", "arguments": "{\"file_name\":\"hello.txt\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	})

	request := &model.Request{
		Messages: []model.Message{model.NewUserMessage("write hello.txt")},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}

	toolCalls := responses[0].Choices[0].Message.ToolCalls
	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(toolCalls))
	}
	if toolCalls[0].ID != "call_1" {
		t.Errorf("tool call id = %s, want call_1", toolCalls[0].ID)
	}
	if toolCalls[0].Function.Name != "save_file" {
		t.Errorf("tool call name = %s, want save_file", toolCalls[0].Function.Name)
	}
	if got := string(toolCalls[0].Function.Arguments); got != `{"file_name":"hello.txt"}` {
		t.Errorf("tool call arguments = %s", got)
	}
}

func TestModel_GenContent_NonStreamingError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "backend exploded", "type": "server_error"}}`)
	})

	request := &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}

	rsp := responses[0]
	if rsp.Error == nil {
		t.Fatal("expected error response")
	}
	if rsp.Error.Type != model.ErrorTypeAPIError {
		t.Errorf("error type = %s, want %s", rsp.Error.Type, model.ErrorTypeAPIError)
	}
	if !rsp.Done {
		t.Error("error response should be final")
	}
}

func sseHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestModel_GenContent_Streaming(t *testing.T) {
	m := newTestModel(t, sseHandler(
		`{"id":"chatcmpl-s","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"chatcmpl-s","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"chatcmpl-s","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"chatcmpl-s","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
	))

	request := &model.Request{
		Messages:         []model.Message{model.NewUserMessage("Say hello.")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) < 2 {
		t.Fatalf("expected partial and final responses, got %d", len(responses))
	}

	var partialContent strings.Builder
	for _, rsp := range responses[:len(responses)-1] {
		if !rsp.IsPartial {
			t.Errorf("expected partial response before final, got %+v", rsp)
		}
		if len(rsp.Choices) > 0 {
			partialContent.WriteString(rsp.Choices[0].Delta.Content)
		}
	}
	if got := partialContent.String(); got != "Hello" {
		t.Errorf("aggregated partial content = %q, want %q", got, "Hello")
	}

	final := responses[len(responses)-1]
	if final.IsPartial || !final.Done {
		t.Errorf("final response flags: partial=%v done=%v", final.IsPartial, final.Done)
	}
	if got := final.Choices[0].Message.Content; got != "Hello" {
		t.Errorf("final content = %q, want %q", got, "Hello")
	}
	if final.Usage == nil || final.Usage.TotalTokens != 11 {
		t.Errorf("final usage = %+v, want total 11", final.Usage)
	}
}

func TestModel_GenContent_StreamingToolCalls(t *testing.T) {
	m := newTestModel(t, sseHandler(
		`{"id":"chatcmpl-st","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"read_file","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-st","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"file_name\":\"a.txt\"}"}}]}}]}`,
		`{"id":"chatcmpl-st","object":"chat.completion.chunk","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	))

	request := &model.Request{
		Messages:         []model.Message{model.NewUserMessage("read a.txt")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) == 0 {
		t.Fatal("expected responses, got none")
	}

	final := responses[len(responses)-1]
	if final.IsPartial {
		t.Fatal("last response should be the final aggregated one")
	}
	// Tool call responses leave the turn open for tool execution.
	if final.Done {
		t.Error("tool call response should not be marked done")
	}

	toolCalls := final.Choices[0].Message.ToolCalls
	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 accumulated tool call, got %d", len(toolCalls))
	}
	if toolCalls[0].ID != "call_abc" {
		t.Errorf("tool call id = %s, want call_abc", toolCalls[0].ID)
	}
	if toolCalls[0].Function.Name != "read_file" {
		t.Errorf("tool call name = %s, want read_file", toolCalls[0].Function.Name)
	}
	if got := string(toolCalls[0].Function.Arguments); got != `{"file_name":"a.txt"}` {
		t.Errorf("tool call arguments = %s", got)
	}
}

func TestModel_GenContent_StreamingError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"message": "overloaded"}}`)
	})

	request := &model.Request{
		Messages:         []model.Message{model.NewUserMessage("hi")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}

	responses := collectResponses(t, responseChan)
	if len(responses) != 1 {
		t.Fatalf("expected 1 error response, got %d", len(responses))
	}
	if responses[0].Error == nil {
		t.Fatal("expected error response")
	}
	if responses[0].Error.Type != model.ErrorTypeStreamError {
		t.Errorf("error type = %s, want %s", responses[0].Error.Type, model.ErrorTypeStreamError)
	}
}

// stubTool implements tool.Tool for testing purposes.
type stubTool struct{ decl *tool.Declaration }

func (s stubTool) Call(_ context.Context, _ []byte) (any, error) { return nil, nil }
func (s stubTool) Declaration() *tool.Declaration                { return s.decl }

// TestModel_convertMessages verifies that messages are converted to the
// openai-go request format with the expected roles and fields.
func TestModel_convertMessages(t *testing.T) {
	m := New("dummy-model")

	msgs := []model.Message{
		model.NewSystemMessage("system content"),
		model.NewUserMessage("user content"),
		{
			Role:    model.RoleAssistant,
			Content: "assistant content",
			ToolCalls: []model.ToolCall{{
				ID:   "call-1",
				Type: "function",
				Function: model.FunctionDefinitionParam{
					Name:      "hello",
					Arguments: []byte("{\"a\":1}"),
				},
			}},
		},
		{
			Role:    model.RoleTool,
			Content: "tool response",
			ToolID:  "call-1",
		},
		{
			Role:    "unknown",
			Content: "fallback content",
		},
	}

	converted := m.convertMessages(msgs)
	if got, want := len(converted), len(msgs); got != want {
		t.Fatalf("converted len=%d want=%d", got, want)
	}

	roleChecks := []func(openaigo.ChatCompletionMessageParamUnion) bool{
		func(u openaigo.ChatCompletionMessageParamUnion) bool { return u.OfSystem != nil },
		func(u openaigo.ChatCompletionMessageParamUnion) bool { return u.OfUser != nil },
		func(u openaigo.ChatCompletionMessageParamUnion) bool { return u.OfAssistant != nil },
		func(u openaigo.ChatCompletionMessageParamUnion) bool { return u.OfTool != nil },
		func(u openaigo.ChatCompletionMessageParamUnion) bool { return u.OfUser != nil },
	}

	for i, u := range converted {
		if !roleChecks[i](u) {
			t.Fatalf("index %d: expected role variant not set", i)
		}
	}

	// Assert that assistant message contains tool calls after conversion.
	assistantUnion := converted[2]
	if assistantUnion.OfAssistant == nil {
		t.Fatalf("assistant union is nil")
	}
	if len(assistantUnion.GetToolCalls()) == 0 {
		t.Fatalf("assistant message should contain tool calls")
	}

	// Assert the tool message carries the tool call ID.
	if got := converted[3].OfTool.ToolCallID; got != "call-1" {
		t.Fatalf("tool call id = %s, want call-1", got)
	}
}

// TestModel_convertTools ensures that tool declarations are mapped to the
// expected OpenAI function definitions.
func TestModel_convertTools(t *testing.T) {
	m := New("dummy")

	const toolName = "test_tool"
	const toolDesc = "test description"

	schema := &tool.Schema{Type: "object"}

	toolsMap := map[string]tool.Tool{
		toolName: stubTool{decl: &tool.Declaration{
			Name:        toolName,
			Description: toolDesc,
			InputSchema: schema,
		}},
	}

	params := m.convertTools(toolsMap)
	if got, want := len(params), 1; got != want {
		t.Fatalf("convertTools len=%d want=%d", got, want)
	}

	fn := params[0].Function
	if fn.Name != toolName {
		t.Fatalf("function name=%s want=%s", fn.Name, toolName)
	}
	if !fn.Description.Valid() || fn.Description.Value != toolDesc {
		t.Fatalf("function description mismatch")
	}

	if reflect.ValueOf(fn.Parameters).IsZero() {
		t.Fatalf("expected parameters to be populated from schema")
	}
}

// TestBuildToolDescription checks that the output schema is appended to the
// tool description when present.
func TestBuildToolDescription(t *testing.T) {
	decl := &tool.Declaration{
		Name:        "echo",
		Description: "echoes input",
		OutputSchema: &tool.Schema{
			Type: "object",
		},
	}

	desc := buildToolDescription(decl)
	if !strings.HasPrefix(desc, "echoes input") {
		t.Fatalf("description prefix lost: %s", desc)
	}
	if !strings.Contains(desc, "Output schema:") {
		t.Fatalf("output schema not appended: %s", desc)
	}

	decl.OutputSchema = nil
	if got := buildToolDescription(decl); got != "echoes input" {
		t.Fatalf("description without schema = %s", got)
	}
}

func TestModel_Callbacks(t *testing.T) {
	var requestCalled, responseCalled bool

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-cb",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]
		}`)
	})
	m.chatRequestCallback = func(ctx context.Context, req *openaigo.ChatCompletionNewParams) {
		requestCalled = true
		if req.Model != "test-model" {
			t.Errorf("callback request model = %s", req.Model)
		}
	}
	m.chatResponseCallback = func(ctx context.Context, req *openaigo.ChatCompletionNewParams, rsp *openaigo.ChatCompletion) {
		responseCalled = true
		if rsp.ID != "chatcmpl-cb" {
			t.Errorf("callback response id = %s", rsp.ID)
		}
	}

	request := &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	}

	responseChan, err := m.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}
	collectResponses(t, responseChan)

	if !requestCalled {
		t.Error("request callback was not called")
	}
	if !responseCalled {
		t.Error("response callback was not called")
	}
}
