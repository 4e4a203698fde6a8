//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
)

func TestCreateAndGetTask(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	task := session.NewTask("write hello to a file")
	require.NoError(t, svc.CreateTask(ctx, task))

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, session.StatusPending, got.Status)

	// Mutating the returned copy must not touch the stored task.
	got.Description = "changed"
	again, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write hello to a file", again.Description)
}

func TestCreateTaskErrors(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateTask(ctx, nil), session.ErrTaskIDRequired)
	assert.ErrorIs(t, svc.CreateTask(ctx, &session.Task{}), session.ErrTaskIDRequired)

	task := session.NewTask("dup")
	require.NoError(t, svc.CreateTask(ctx, task))
	assert.Error(t, svc.CreateTask(ctx, task))
}

func TestGetTaskNotFound(t *testing.T) {
	svc := NewService()
	defer svc.Close()

	_, err := svc.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrTaskNotFound)

	_, err = svc.GetTask(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrTaskIDRequired)
}

func TestListTasksOrdered(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		task := session.NewTask(fmt.Sprintf("task %d", i))
		require.NoError(t, svc.CreateTask(ctx, task))
		ids = append(ids, task.ID)
	}

	tasks, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for i := 1; i < len(tasks); i++ {
		assert.False(t, tasks[i].CreatedAt.Before(tasks[i-1].CreatedAt))
	}
	_ = ids
}

func TestUpdateTaskStatus(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	task := session.NewTask("lifecycle")
	require.NoError(t, svc.CreateTask(ctx, task))

	require.NoError(t, svc.UpdateTaskStatus(ctx, task.ID, session.StatusRunning, ""))
	require.NoError(t, svc.UpdateTaskStatus(ctx, task.ID, session.StatusFailed, "backend unavailable"))

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, got.Status)
	assert.Equal(t, "backend unavailable", got.Reason)

	// Terminal states never regress.
	err = svc.UpdateTaskStatus(ctx, task.ID, session.StatusRunning, "")
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	err = svc.UpdateTaskStatus(ctx, task.ID, session.StatusCompleted, "")
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestAppendMessageAssignsSeq(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	task := session.NewTask("seq test")
	require.NoError(t, svc.CreateTask(ctx, task))

	for i := 1; i <= 3; i++ {
		stored, err := svc.AppendMessage(ctx, session.Message{
			TaskID:  task.ID,
			Sender:  "Researcher",
			Role:    model.RoleAssistant,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), stored.Seq)
		assert.False(t, stored.Timestamp.IsZero())
	}

	record, err := svc.GetRecord(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, record.Messages, 3)
	for i, msg := range record.Messages {
		assert.Equal(t, int64(i+1), msg.Seq)
	}
}

func TestAppendMessageUnknownTask(t *testing.T) {
	svc := NewService()
	defer svc.Close()

	_, err := svc.AppendMessage(context.Background(), session.Message{TaskID: "missing"})
	assert.ErrorIs(t, err, session.ErrTaskNotFound)
}

func TestConcurrentAppendsGapless(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	task := session.NewTask("concurrent appends")
	require.NoError(t, svc.CreateTask(ctx, task))

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := svc.AppendMessage(ctx, session.Message{
					TaskID:  task.ID,
					Sender:  fmt.Sprintf("agent-%d", w),
					Role:    model.RoleAssistant,
					Content: "hi",
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	record, err := svc.GetRecord(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, record.Messages, writers*perWriter)
	for i, msg := range record.Messages {
		assert.Equal(t, int64(i+1), msg.Seq, "seq must be gapless and strictly increasing")
	}
}

func TestGetRecordCopies(t *testing.T) {
	svc := NewService()
	defer svc.Close()
	ctx := context.Background()

	task := session.NewTask("copy safety")
	require.NoError(t, svc.CreateTask(ctx, task))
	_, err := svc.AppendMessage(ctx, session.Message{
		TaskID:  task.ID,
		Sender:  "user",
		Role:    model.RoleUser,
		Content: "original",
	})
	require.NoError(t, err)

	record, err := svc.GetRecord(ctx, task.ID)
	require.NoError(t, err)
	record.Messages[0].Content = "mutated"

	again, err := svc.GetRecord(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}
