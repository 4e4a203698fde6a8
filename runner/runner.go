//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package runner provides the task execution surface: it creates tasks
// in the session store and drives them through a team coordinator, one
// at a time or as a bounded-concurrency batch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/team"
)

// defaultBatchConcurrency bounds RunBatch when the caller passes no
// explicit limit.
const defaultBatchConcurrency = 4

// Runner executes tasks against one team coordinator and its session
// store.
type Runner struct {
	coordinator *team.Coordinator
	service     session.Service
}

// New creates a runner over the coordinator's session store.
func New(coordinator *team.Coordinator) (*Runner, error) {
	if coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	return &Runner{
		coordinator: coordinator,
		service:     coordinator.Service(),
	}, nil
}

// Run creates a task from the description and drives it to a terminal
// status.
func (r *Runner) Run(ctx context.Context, description string) (*team.Outcome, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("task description is required")
	}
	task := session.NewTask(description)
	if err := r.service.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task failed: %w", err)
	}
	log.InfofContext(ctx, "Task %s created for team %s", task.ID, r.coordinator.Team().Name())
	return r.coordinator.RunTask(ctx, task)
}

// Resume continues an interrupted task from its stored record.
func (r *Runner) Resume(ctx context.Context, taskID string) (*team.Outcome, error) {
	return r.coordinator.Resume(ctx, taskID)
}

// RunBatch runs each description as an isolated task, at most
// concurrency at a time, and returns the outcomes in input order. A
// failed slot leaves a nil outcome; the returned error joins all slot
// errors.
func (r *Runner) RunBatch(ctx context.Context, descriptions []string, concurrency int) ([]*team.Outcome, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	if concurrency > len(descriptions) {
		concurrency = len(descriptions)
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create batch worker pool failed: %w", err)
	}
	defer pool.Release()

	outcomes := make([]*team.Outcome, len(descriptions))
	errs := make([]error, len(descriptions))
	var wg sync.WaitGroup
	for i, description := range descriptions {
		wg.Add(1)
		// Capture loop variables for the task closure.
		idx, desc := i, description
		if err := pool.Submit(func() {
			defer wg.Done()
			outcomes[idx], errs[idx] = r.Run(ctx, desc)
		}); err != nil {
			wg.Done()
			errs[idx] = fmt.Errorf("submit task %d failed: %w", idx, err)
		}
	}
	wg.Wait()
	return outcomes, errors.Join(errs...)
}
