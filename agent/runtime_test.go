//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// stubModel replays canned responses, one per GenerateContent call, and
// captures the requests it receives.
type stubModel struct {
	name      string
	responses []*model.Response
	err       error
	requests  []*model.Request
}

func (s *stubModel) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	s.requests = append(s.requests, request)
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *model.Response, len(s.responses))
	for _, rsp := range s.responses {
		ch <- rsp
	}
	close(ch)
	return ch, nil
}

func (s *stubModel) Info() model.Info {
	return model.Info{Name: s.name}
}

func textResponse(content string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}},
		Done:    true,
	}
}

func toolCallResponse(id, name string, args []byte) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{
			Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					Type: "function",
					ID:   id,
					Function: model.FunctionDefinitionParam{
						Name:      name,
						Arguments: args,
					},
				}},
			},
		}},
	}
}

type declOnlyTool struct {
	declaration *tool.Declaration
}

func (d *declOnlyTool) Declaration() *tool.Declaration { return d.declaration }

func (d *declOnlyTool) Call(ctx context.Context, args []byte) (any, error) {
	return nil, errors.New("not callable in this test")
}

func newTestRegistry(t *testing.T, names ...string) *tool.Registry {
	t.Helper()
	var tools []tool.CallableTool
	for _, name := range names {
		tools = append(tools, &declOnlyTool{declaration: &tool.Declaration{Name: name}})
	}
	registry, err := tool.NewRegistry(context.Background(), tool.WithTools(tools...))
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })
	return registry
}

func TestNewRuntimeValidation(t *testing.T) {
	m := &stubModel{name: "test-model"}

	_, err := NewRuntime(Definition{}, m, nil)
	assert.Error(t, err)

	_, err = NewRuntime(Definition{Name: "Researcher"}, nil, nil)
	assert.Error(t, err)

	rt, err := NewRuntime(Definition{Name: "Researcher"}, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "Researcher", rt.Name())
}

func TestNewRuntimeDeclaresAllowedToolsOnly(t *testing.T) {
	registry := newTestRegistry(t, "write_file", "read_file", "github_search")
	m := &stubModel{name: "test-model", responses: []*model.Response{textResponse("hi")}}

	rt, err := NewRuntime(Definition{
		Name:         "Developer",
		Instructions: "You write code.",
		AllowedTools: []string{"write_file", "read_file", "not_mounted"},
	}, m, registry)
	require.NoError(t, err)

	_, err = rt.Step(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, m.requests, 1)
	tools := m.requests[0].Tools
	assert.Len(t, tools, 2)
	assert.Contains(t, tools, "write_file")
	assert.Contains(t, tools, "read_file")
	assert.NotContains(t, tools, "github_search")
}

func TestStepMessageOutput(t *testing.T) {
	m := &stubModel{name: "test-model", responses: []*model.Response{textResponse("The answer is 42.")}}
	rt, err := NewRuntime(Definition{Name: "Analyst", Instructions: "Analyze."}, m, nil)
	require.NoError(t, err)

	out, err := rt.Step(context.Background(), []session.Message{
		{TaskID: "task-1", Sender: "user", Role: model.RoleUser, Content: "What is the answer?"},
	})
	require.NoError(t, err)

	assert.Equal(t, OutputMessage, out.Kind)
	assert.Equal(t, "The answer is 42.", out.Message.Content)
	assert.Nil(t, out.Request)
	assert.False(t, out.SelfCorrection)
}

func TestStepToolRequestOutput(t *testing.T) {
	m := &stubModel{name: "test-model", responses: []*model.Response{
		toolCallResponse("call-1", "write_file", []byte(`{"path":"hello.txt","content":"hi"}`)),
	}}
	rt, err := NewRuntime(Definition{Name: "Developer"}, m, nil)
	require.NoError(t, err)

	out, err := rt.Step(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, OutputToolRequest, out.Kind)
	require.NotNil(t, out.Request)
	assert.Equal(t, "call-1", out.Request.CallID)
	assert.Equal(t, "write_file", out.Request.ToolName)
	assert.JSONEq(t, `{"path":"hello.txt","content":"hi"}`, string(out.Request.Arguments))
	require.Len(t, out.Message.ToolCalls, 1)
}

func TestStepToolRequestAssignsMissingCallID(t *testing.T) {
	m := &stubModel{name: "test-model", responses: []*model.Response{
		toolCallResponse("", "read_file", nil),
	}}
	rt, err := NewRuntime(Definition{Name: "Developer"}, m, nil)
	require.NoError(t, err)

	out, err := rt.Step(context.Background(), nil)
	require.NoError(t, err)

	require.NotNil(t, out.Request)
	assert.NotEmpty(t, out.Request.CallID)
	assert.Equal(t, out.Request.CallID, out.Message.ToolCalls[0].ID)
	assert.JSONEq(t, "{}", string(out.Request.Arguments))
}

func TestStepFirstToolCallWins(t *testing.T) {
	rsp := toolCallResponse("call-1", "write_file", []byte(`{}`))
	rsp.Choices[0].Message.ToolCalls = append(rsp.Choices[0].Message.ToolCalls, model.ToolCall{
		ID:       "call-2",
		Function: model.FunctionDefinitionParam{Name: "read_file", Arguments: []byte(`{}`)},
	})
	m := &stubModel{name: "test-model", responses: []*model.Response{rsp}}
	rt, err := NewRuntime(Definition{Name: "Developer"}, m, nil)
	require.NoError(t, err)

	out, err := rt.Step(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "write_file", out.Request.ToolName)
	assert.Len(t, out.Message.ToolCalls, 1, "extra parallel calls are dropped")
}

func TestStepBackendUnavailable(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		m := &stubModel{name: "test-model", err: errors.New("dial tcp: connection refused")}
		rt, err := NewRuntime(Definition{Name: "Analyst"}, m, nil)
		require.NoError(t, err)

		_, err = rt.Step(context.Background(), nil)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("response error", func(t *testing.T) {
		m := &stubModel{name: "test-model", responses: []*model.Response{{
			Error: &model.ResponseError{Message: "rate limited", Type: model.ErrorTypeAPIError},
		}}}
		rt, err := NewRuntime(Definition{Name: "Analyst"}, m, nil)
		require.NoError(t, err)

		_, err = rt.Step(context.Background(), nil)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("empty channel", func(t *testing.T) {
		m := &stubModel{name: "test-model"}
		rt, err := NewRuntime(Definition{Name: "Analyst"}, m, nil)
		require.NoError(t, err)

		_, err = rt.Step(context.Background(), nil)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

func TestStepSelfCorrection(t *testing.T) {
	tests := []struct {
		name string
		rsp  *model.Response
	}{
		{name: "no choices", rsp: &model.Response{Done: true}},
		{name: "empty content", rsp: textResponse("   ")},
		{name: "tool call without name", rsp: toolCallResponse("call-1", "", []byte(`{}`))},
		{name: "non json arguments", rsp: toolCallResponse("call-1", "write_file", []byte(`not json`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubModel{name: "test-model", responses: []*model.Response{tt.rsp}}
			rt, err := NewRuntime(Definition{Name: "Developer"}, m, nil)
			require.NoError(t, err)

			out, err := rt.Step(context.Background(), nil)
			require.NoError(t, err, "unusable output must not fail the step")

			assert.Equal(t, OutputMessage, out.Kind)
			assert.True(t, out.SelfCorrection)
			assert.NotEmpty(t, out.Message.Content)

			rt.mu.Lock()
			pending := len(rt.notes)
			rt.mu.Unlock()
			assert.Equal(t, 1, pending, "a corrective note must be queued for the next step")
		})
	}
}

func TestForkIsolatesCorrectiveNotes(t *testing.T) {
	m := &stubModel{name: "test-model"}
	rt, err := NewRuntime(Definition{Name: "Researcher"}, m, nil)
	require.NoError(t, err)

	rt.AddCorrectiveNote("original note")
	forked := rt.Fork()
	forked.AddCorrectiveNote("forked note")

	assert.Equal(t, "Researcher", forked.Name())
	assert.Equal(t, []string{"original note"}, rt.pendingNotes())
	assert.Equal(t, []string{"forked note"}, forked.pendingNotes())
}

func TestStepConsumesCorrectiveNotes(t *testing.T) {
	m := &stubModel{name: "test-model", responses: []*model.Response{textResponse("ok")}}
	rt, err := NewRuntime(Definition{Name: "Developer", Instructions: "Build."}, m, nil)
	require.NoError(t, err)

	rt.AddCorrectiveNote("You are not allowed to use github_search.")

	_, err = rt.Step(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, m.requests, 1)
	msgs := m.requests[0].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "github_search")

	rt.mu.Lock()
	pending := len(rt.notes)
	rt.mu.Unlock()
	assert.Zero(t, pending, "notes are consumed by the step that used them")
}

func TestStepKeepsNotesOnBackendFailure(t *testing.T) {
	m := &stubModel{name: "test-model", err: errors.New("connection reset")}
	rt, err := NewRuntime(Definition{Name: "Developer"}, m, nil)
	require.NoError(t, err)

	rt.AddCorrectiveNote("note one")

	_, err = rt.Step(context.Background(), nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)

	rt.mu.Lock()
	pending := len(rt.notes)
	rt.mu.Unlock()
	assert.Equal(t, 1, pending, "failed steps must not consume notes")
}

func TestBuildMessagesPointOfView(t *testing.T) {
	m := &stubModel{name: "test-model", responses: []*model.Response{textResponse("ok")}}
	rt, err := NewRuntime(Definition{Name: "Developer", Instructions: "You write code."}, m, nil)
	require.NoError(t, err)

	history := []session.Message{
		{TaskID: "task-1", Sender: "user", Role: model.RoleUser, Content: "write hello.txt"},
		{TaskID: "task-1", Sender: "Architect", Role: model.RoleAssistant, Content: "Use write_file."},
		{TaskID: "task-1", Sender: "Developer", Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
			ID:       "call-1",
			Function: model.FunctionDefinitionParam{Name: "write_file", Arguments: []byte(`{"path":"hello.txt"}`)},
		}}},
		{TaskID: "task-1", Sender: "Developer", Role: model.RoleTool, Content: `{"saved":true}`,
			ToolID: "call-1", ToolName: "write_file"},
		{TaskID: "task-1", Sender: "Tester", Role: model.RoleTool, Content: `{"ok":true}`,
			ToolID: "call-2", ToolName: "read_file"},
	}

	_, err = rt.Step(context.Background(), history)
	require.NoError(t, err)

	require.Len(t, m.requests, 1)
	msgs := m.requests[0].Messages
	require.Len(t, msgs, 6)

	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You write code.", msgs[0].Content)

	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "write hello.txt", msgs[1].Content)

	// Another member's message arrives as a labeled user turn.
	assert.Equal(t, model.RoleUser, msgs[2].Role)
	assert.Equal(t, "[Architect]: Use write_file.", msgs[2].Content)

	// The agent's own tool exchange keeps its roles for replay.
	assert.Equal(t, model.RoleAssistant, msgs[3].Role)
	require.Len(t, msgs[3].ToolCalls, 1)
	assert.Equal(t, model.RoleTool, msgs[4].Role)
	assert.Equal(t, "call-1", msgs[4].ToolID)

	// Another member's tool result is labeled text, not a tool message.
	assert.Equal(t, model.RoleUser, msgs[5].Role)
	assert.Contains(t, msgs[5].Content, "[Tester]")
	assert.Contains(t, msgs[5].Content, "read_file")
}
