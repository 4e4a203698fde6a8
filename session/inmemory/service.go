//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides the in-memory session service implementation.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/session"
)

var _ session.Service = (*Service)(nil)

// taskRecord holds one task and its messages. The lock serializes appends
// so seq assignment stays gapless under concurrent writers.
type taskRecord struct {
	mu       sync.Mutex
	task     *session.Task
	messages []session.Message
}

// Service is an in-memory session service. Suitable for tests and for
// single-process runs that do not need durability.
type Service struct {
	mu    sync.RWMutex
	tasks map[string]*taskRecord
}

// NewService creates a new in-memory session service.
func NewService() *Service {
	return &Service{
		tasks: make(map[string]*taskRecord),
	}
}

// CreateTask persists a new task.
func (s *Service) CreateTask(ctx context.Context, task *session.Task) error {
	if task == nil || task.ID == "" {
		return session.ErrTaskIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = &taskRecord{task: task.Clone()}
	return nil
}

// GetTask returns a copy of the task by ID.
func (s *Service) GetTask(ctx context.Context, taskID string) (*session.Task, error) {
	rec, err := s.record(taskID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.task.Clone(), nil
}

// ListTasks returns copies of all tasks ordered by creation time.
func (s *Service) ListTasks(ctx context.Context) ([]*session.Task, error) {
	s.mu.RLock()
	records := make([]*taskRecord, 0, len(s.tasks))
	for _, rec := range s.tasks {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	tasks := make([]*session.Task, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		tasks = append(tasks, rec.task.Clone())
		rec.mu.Unlock()
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// UpdateTaskStatus moves the task to the given status. Backward transitions
// are rejected so terminal states never regress.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID string, status session.Status, reason string) error {
	rec, err := s.record(taskID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.task.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", session.ErrInvalidTransition, rec.task.Status, status)
	}
	rec.task.Status = status
	rec.task.Reason = reason
	rec.task.UpdatedAt = time.Now()
	return nil
}

// AppendMessage appends msg to the task's record, assigning the next seq
// under the per-task lock.
func (s *Service) AppendMessage(ctx context.Context, msg session.Message) (session.Message, error) {
	rec, err := s.record(msg.TaskID)
	if err != nil {
		return session.Message{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	stored := msg.Clone()
	stored.Seq = int64(len(rec.messages)) + 1
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	rec.messages = append(rec.messages, stored)
	rec.task.UpdatedAt = time.Now()
	return stored.Clone(), nil
}

// GetRecord returns the task and copies of its messages in seq order.
func (s *Service) GetRecord(ctx context.Context, taskID string) (*session.Record, error) {
	rec, err := s.record(taskID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	messages := make([]session.Message, 0, len(rec.messages))
	for _, msg := range rec.messages {
		messages = append(messages, msg.Clone())
	}
	return &session.Record{
		Task:     rec.task.Clone(),
		Messages: messages,
	}, nil
}

// Close releases store resources. The in-memory store holds none.
func (s *Service) Close() error {
	return nil
}

func (s *Service) record(taskID string) (*taskRecord, error) {
	if taskID == "" {
		return nil, session.ErrTaskIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrTaskNotFound, taskID)
	}
	return rec, nil
}
