//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-crew-go/agent"
	"trpc.group/trpc-go/trpc-crew-go/gateway"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/session/inmemory"
	"trpc.group/trpc-go/trpc-crew-go/team"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// loopModel answers every request with the same canned response.
type loopModel struct {
	mu       sync.Mutex
	response *model.Response
	calls    int
}

func (l *loopModel) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	ch := make(chan *model.Response, 1)
	ch <- l.response
	close(ch)
	return ch, nil
}

func (l *loopModel) Info() model.Info {
	return model.Info{Name: "loop-model"}
}

func textResponse(content string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}},
		Done:    true,
	}
}

func newTestRunner(t *testing.T) (*Runner, session.Service) {
	t.Helper()
	svc := inmemory.NewService()
	m := &loopModel{response: textResponse("All done. TERMINATE")}
	rt, err := agent.NewRuntime(agent.Definition{Name: "Solo"}, m, nil)
	require.NoError(t, err)
	tm, err := team.New("solo", rt)
	require.NoError(t, err)
	registry, err := tool.NewRegistry(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })
	coordinator, err := team.NewCoordinator(tm, gateway.New(registry), svc)
	require.NoError(t, err)
	r, err := New(coordinator)
	require.NoError(t, err)
	return r, svc
}

func TestNewRequiresCoordinator(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestRunCreatesAndCompletesTask(t *testing.T) {
	ctx := context.Background()
	r, svc := newTestRunner(t)

	outcome, err := r.Run(ctx, "say hello")
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, outcome.Status)
	assert.Equal(t, "All done.", outcome.Summary)

	task, err := svc.GetTask(ctx, outcome.TaskID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, task.Status)
	assert.Equal(t, "say hello", task.Description)
}

func TestRunRejectsBlankDescription(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), "   ")
	assert.Error(t, err)
}

func TestResumeUnknownTask(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Resume(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrTaskNotFound)
}

func TestRunBatchIsolatesTasks(t *testing.T) {
	ctx := context.Background()
	r, svc := newTestRunner(t)

	outcomes, err := r.RunBatch(ctx, []string{"one", "two", "three"}, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	seen := make(map[string]bool)
	for _, outcome := range outcomes {
		require.NotNil(t, outcome)
		assert.Equal(t, session.StatusCompleted, outcome.Status)
		seen[outcome.TaskID] = true
	}
	assert.Len(t, seen, 3)

	tasks, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestRunBatchReportsSlotErrors(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t)

	outcomes, err := r.RunBatch(ctx, []string{"ok", ""}, 0)
	require.Error(t, err)
	require.Len(t, outcomes, 2)
	assert.NotNil(t, outcomes[0])
	assert.Nil(t, outcomes[1])
}

func TestRunBatchEmpty(t *testing.T) {
	r, _ := newTestRunner(t)
	outcomes, err := r.RunBatch(context.Background(), nil, 4)
	assert.NoError(t, err)
	assert.Nil(t, outcomes)
}
