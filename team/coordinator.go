//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-crew-go/agent"
	"trpc.group/trpc-go/trpc-crew-go/gateway"
	itelemetry "trpc.group/trpc-go/trpc-crew-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/telemetry/trace"
)

// Failure reason labels reported in a task outcome.
const (
	ReasonTurnLimitExceeded  = "TurnLimitExceeded"
	ReasonBackendUnavailable = "BackendUnavailable"
	ReasonCancelled          = "Cancelled"
)

// userSender marks the seeded task description in the record.
const userSender = "user"

// Outcome is the terminal report of one task run.
type Outcome struct {
	// TaskID is the task this outcome belongs to.
	TaskID string
	// Status is the terminal task status.
	Status session.Status
	// Reason explains non-completed outcomes, prefixed with one of the
	// Reason labels.
	Reason string
	// Summary is the final message content for completed tasks, with
	// the termination marker removed.
	Summary string
	// Turns is the number of agent turns the task took.
	Turns int
}

// Coordinator drives a team over a stored task record: the policy
// picks the speaker, the speaker steps, tool calls go through the
// gateway, and every exchange lands in the session store before the
// next turn starts.
type Coordinator struct {
	team    *Team
	policy  TurnPolicy
	gateway *gateway.Gateway
	service session.Service

	maxTurns       int
	marker         string
	backendRetries int
	retryBackoff   time.Duration
}

// NewCoordinator wires a team to the gateway and the store it runs
// against.
func NewCoordinator(t *Team, gw *gateway.Gateway, service session.Service, opts ...Option) (*Coordinator, error) {
	if t == nil {
		return nil, errors.New("team is required")
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if service == nil {
		return nil, errors.New("session service is required")
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Coordinator{
		team:           t,
		policy:         cfg.policy,
		gateway:        gw,
		service:        service,
		maxTurns:       cfg.maxTurns,
		marker:         cfg.marker,
		backendRetries: cfg.backendRetries,
		retryBackoff:   cfg.retryBackoff,
	}, nil
}

// Team returns the team this coordinator drives.
func (c *Coordinator) Team() *Team {
	return c.team
}

// Service returns the session store the coordinator persists to.
func (c *Coordinator) Service() session.Service {
	return c.service
}

// RunTask drives the task to a terminal status and reports the outcome.
// A Pending task is moved to Running first; terminal tasks are
// rejected. The task description is seeded as the opening user message
// when the record is empty.
func (c *Coordinator) RunTask(ctx context.Context, task *session.Task) (*Outcome, error) {
	if task == nil {
		return nil, errors.New("task is required")
	}
	return c.run(ctx, task)
}

// Resume continues an interrupted task from its stored record. Turn
// count, floor holder, and next speaker are rebuilt from the record
// alone, so the resumed run decides exactly as an uninterrupted one
// would have.
func (c *Coordinator) Resume(ctx context.Context, taskID string) (*Outcome, error) {
	task, err := c.service.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, task)
}

func (c *Coordinator) run(ctx context.Context, task *session.Task) (*Outcome, error) {
	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("task %s is already %s", task.ID, task.Status)
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewRunTaskSpanName(task.ID))
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyTaskID, task.ID))

	// Each run works on its own copy of the roster so corrective notes
	// stay scoped to this task even when runs share a coordinator.
	crew := c.team.fork()

	if task.Status == session.StatusPending {
		if err := c.service.UpdateTaskStatus(ctx, task.ID, session.StatusRunning, ""); err != nil {
			return nil, fmt.Errorf("start task %s failed: %w", task.ID, err)
		}
	}
	record, err := c.service.GetRecord(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	messages := record.Messages
	if len(messages) == 0 {
		seeded, err := c.service.AppendMessage(ctx, session.Message{
			TaskID:  task.ID,
			Sender:  userSender,
			Role:    model.RoleUser,
			Content: task.Description,
		})
		if err != nil {
			return nil, err
		}
		messages = append(messages, seeded)
	}
	turns := countTurns(messages)

	// A run interrupted between a tool call and its result leaves the
	// call dangling at the end of the record. Dispatch it again before
	// handing out turns, so the record never carries two results for
	// one call and the requester still reacts to the outcome.
	if req, requester, ok := danglingToolCall(messages); ok {
		speaker, found := crew.Member(requester)
		if !found {
			return nil, fmt.Errorf("agent %s holds an open tool call but is not in team %s", requester, crew.Name())
		}
		log.InfofContext(ctx, "Task %s resumes with open tool call %s for agent %s", task.ID, req.ToolName, requester)
		resultMsg, interrupted, err := c.dispatch(ctx, task.ID, speaker, req)
		if err != nil {
			return nil, err
		}
		if interrupted {
			return c.finish(ctx, task, session.StatusFailed,
				failReason(ReasonCancelled, "task cancelled during tool call"), "", turns)
		}
		messages = append(messages, resultMsg)
	}

	for {
		if ctx.Err() != nil {
			return c.finish(ctx, task, session.StatusFailed,
				failReason(ReasonCancelled, "task cancelled"), "", turns)
		}
		if turns >= c.maxTurns {
			return c.finish(ctx, task, session.StatusFailed,
				failReason(ReasonTurnLimitExceeded, fmt.Sprintf("turn limit %d reached", c.maxTurns)), "", turns)
		}
		decision := c.policy.NextSpeaker(crew, messages)
		speaker := decision.Speaker
		if speaker == nil {
			return nil, fmt.Errorf("policy %s returned no speaker for task %s", c.policy.Name(), task.ID)
		}
		if decision.Corrective != "" {
			speaker.AddCorrectiveNote(decision.Corrective)
		}
		output, err := c.step(ctx, speaker, messages)
		if err != nil {
			switch {
			case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return c.finish(ctx, task, session.StatusFailed,
					failReason(ReasonCancelled, "task cancelled"), "", turns)
			case errors.Is(err, agent.ErrBackendUnavailable):
				return c.finish(ctx, task, session.StatusFailed,
					failReason(ReasonBackendUnavailable, err.Error()), "", turns)
			default:
				return nil, err
			}
		}
		stored, err := c.service.AppendMessage(ctx, recordMessage(task.ID, speaker.Name(), output.Message))
		if err != nil {
			return nil, err
		}
		messages = append(messages, stored)
		turns++
		span.SetAttributes(attribute.Int(itelemetry.KeyTaskTurn, turns))

		if output.Kind == agent.OutputToolRequest {
			resultMsg, interrupted, err := c.dispatch(ctx, task.ID, speaker, output.Request)
			if err != nil {
				return nil, err
			}
			if interrupted {
				return c.finish(ctx, task, session.StatusFailed,
					failReason(ReasonCancelled, "task cancelled during tool call"), "", turns)
			}
			messages = append(messages, resultMsg)
			continue
		}
		if c.completed(output) {
			summary := strings.TrimSpace(strings.ReplaceAll(stored.Content, c.marker, ""))
			return c.finish(ctx, task, session.StatusCompleted, "", summary, turns)
		}
	}
}

// step runs one speaker turn, retrying an unavailable backend with a
// doubling backoff before giving up.
func (c *Coordinator) step(ctx context.Context, speaker *agent.Runtime, messages []session.Message) (*agent.Output, error) {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewInvokeAgentSpanName(speaker.Name()))
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyGenAIAgentName, speaker.Name()))

	var lastErr error
	backoff := c.retryBackoff
	for attempt := 0; attempt <= c.backendRetries; attempt++ {
		if attempt > 0 {
			log.WarnfContext(ctx, "Agent %s step failed, retrying in %v (%d/%d): %v",
				speaker.Name(), backoff, attempt, c.backendRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		output, err := speaker.Step(ctx, messages)
		if err == nil {
			return output, nil
		}
		if !errors.Is(err, agent.ErrBackendUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// dispatch resolves one tool request and appends its result message.
// interrupted reports external cancellation before a result was
// observed; the call then stays open in the record for a resumed run
// to dispatch again.
func (c *Coordinator) dispatch(ctx context.Context, taskID string, speaker *agent.Runtime, req *agent.ToolRequest) (session.Message, bool, error) {
	result := c.resolve(ctx, taskID, speaker, req)
	if result.ErrorKind == session.ErrorKindCancelled && ctx.Err() != nil {
		return session.Message{}, true, nil
	}
	stored, err := c.service.AppendMessage(ctx, session.Message{
		TaskID:   taskID,
		Sender:   speaker.Name(),
		Role:     model.RoleTool,
		Content:  result.Content(),
		ToolID:   req.CallID,
		ToolName: req.ToolName,
	})
	if err != nil {
		return session.Message{}, false, err
	}
	return stored, false, nil
}

// resolve checks the speaker's allowed tools and invokes the gateway
// for permitted calls. Denied calls never reach the gateway; the
// denial is answered locally and the speaker is told to correct
// course on its next step.
func (c *Coordinator) resolve(ctx context.Context, taskID string, speaker *agent.Runtime, req *agent.ToolRequest) *session.ToolResult {
	def := speaker.Definition()
	if !allowed(def.AllowedTools, req.ToolName) {
		log.WarnfContext(ctx, "Agent %s requested tool %s outside its allowed set", speaker.Name(), req.ToolName)
		note := fmt.Sprintf("You requested tool %s, but you have no permitted tools. Answer in plain text instead.", req.ToolName)
		if len(def.AllowedTools) > 0 {
			note = fmt.Sprintf("You requested tool %s, which you are not permitted to use. Your permitted tools are: %s.",
				req.ToolName, strings.Join(def.AllowedTools, ", "))
		}
		speaker.AddCorrectiveNote(note)
		return &session.ToolResult{
			CallID:      req.CallID,
			Status:      session.ResultError,
			ErrorKind:   session.ErrorKindNotPermitted,
			ErrorDetail: fmt.Sprintf("tool %s is not permitted for agent %s", req.ToolName, speaker.Name()),
			CompletedAt: time.Now(),
		}
	}
	return c.gateway.Invoke(ctx, &session.ToolCall{
		ID:             req.CallID,
		TaskID:         taskID,
		RequesterAgent: speaker.Name(),
		ToolName:       req.ToolName,
		Arguments:      req.Arguments,
		IssuedAt:       time.Now(),
	})
}

// completed reports whether the output carries the termination marker.
// Self-correction messages never complete a task.
func (c *Coordinator) completed(output *agent.Output) bool {
	return c.marker != "" && !output.SelfCorrection && strings.Contains(output.Message.Content, c.marker)
}

// finish persists the terminal status and builds the outcome. The
// status must land even when the run context is already cancelled.
func (c *Coordinator) finish(ctx context.Context, task *session.Task, status session.Status, reason, summary string, turns int) (*Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	if err := c.service.UpdateTaskStatus(ctx, task.ID, status, reason); err != nil {
		log.ErrorfContext(ctx, "Update task %s to %s failed: %v", task.ID, status, err)
	}
	if status == session.StatusCompleted {
		log.InfofContext(ctx, "Task %s completed after %d turns", task.ID, turns)
	} else {
		log.WarnfContext(ctx, "Task %s failed after %d turns: %s", task.ID, turns, reason)
	}
	return &Outcome{
		TaskID:  task.ID,
		Status:  status,
		Reason:  reason,
		Summary: summary,
		Turns:   turns,
	}, nil
}

// danglingToolCall reports an unanswered tool call at the end of the
// record.
func danglingToolCall(messages []session.Message) (*agent.ToolRequest, string, bool) {
	if len(messages) == 0 {
		return nil, "", false
	}
	last := messages[len(messages)-1]
	if last.Role != model.RoleAssistant || len(last.ToolCalls) == 0 {
		return nil, "", false
	}
	call := last.ToolCalls[0]
	return &agent.ToolRequest{
		CallID:    call.ID,
		ToolName:  call.Function.Name,
		Arguments: call.Function.Arguments,
	}, last.Sender, true
}

// countTurns counts agent turns in the record. Every assistant message
// is one turn, so a resumed task picks up the count it left at.
func countTurns(messages []session.Message) int {
	turns := 0
	for _, m := range messages {
		if m.Role == model.RoleAssistant {
			turns++
		}
	}
	return turns
}

func recordMessage(taskID, sender string, m model.Message) session.Message {
	return session.Message{
		TaskID:    taskID,
		Sender:    sender,
		Role:      m.Role,
		Content:   m.Content,
		ToolCalls: m.ToolCalls,
	}
}

func allowed(tools []string, name string) bool {
	for _, t := range tools {
		if t == name {
			return true
		}
	}
	return false
}

func failReason(label, detail string) string {
	return label + ": " + detail
}
