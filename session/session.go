//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package session defines the durable task record shared by the team
// coordinator, the tool gateway, and the stores that persist them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-crew-go/model"
)

var (
	// ErrTaskIDRequired is the error for task id required.
	ErrTaskIDRequired = errors.New("taskID is required")
	// ErrTaskNotFound is the error for task not found.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is the error for a backward task status transition.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Status is the lifecycle state of a task.
type Status string

// Task lifecycle states. Terminal states never regress.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Terminal states accept no further transitions; pending may
// become running or terminal; running may only become terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCompleted || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Task is one unit of work handed to a team.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`
	// Description is the user-supplied statement of work.
	Description string `json:"description"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Reason carries the human-readable cause for a failed task.
	Reason string `json:"reason,omitempty"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the last modification timestamp.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTask creates a pending task with a generated ID.
func NewTask(description string) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// Message is one entry in a task's conversation record. Seq is assigned by
// the store on append and is strictly increasing and gapless per task.
type Message struct {
	// TaskID identifies the task the message belongs to.
	TaskID string `json:"taskId"`
	// Seq is the store-assigned position within the task, starting at 1.
	Seq int64 `json:"seq"`
	// Sender is the agent name, or "user" for the task description.
	Sender string `json:"sender"`
	// Role is the conversation role of the entry.
	Role model.Role `json:"role"`
	// Content is the message text, or the serialized tool result payload
	// for tool messages.
	Content string `json:"content,omitempty"`
	// ToolCalls carries the tool calls requested by an assistant message.
	ToolCalls []model.ToolCall `json:"toolCalls,omitempty"`
	// ToolID is the call ID a tool message responds to.
	ToolID string `json:"toolId,omitempty"`
	// ToolName is the tool name a tool message responds to.
	ToolName string `json:"toolName,omitempty"`
	// Timestamp is the append time.
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	clone := m
	if len(m.ToolCalls) > 0 {
		clone.ToolCalls = make([]model.ToolCall, len(m.ToolCalls))
		copy(clone.ToolCalls, m.ToolCalls)
		for i, tc := range m.ToolCalls {
			if len(tc.Function.Arguments) > 0 {
				args := make([]byte, len(tc.Function.Arguments))
				copy(args, tc.Function.Arguments)
				clone.ToolCalls[i].Function.Arguments = args
			}
		}
	}
	return clone
}

// ToolCall is a request to invoke one tool on behalf of an agent.
type ToolCall struct {
	// ID uniquely identifies the call.
	ID string `json:"id"`
	// TaskID identifies the task the call belongs to.
	TaskID string `json:"taskId"`
	// RequesterAgent is the name of the agent that issued the call.
	RequesterAgent string `json:"requesterAgent"`
	// ToolName is the registry name of the tool to invoke.
	ToolName string `json:"toolName"`
	// Arguments is the JSON-encoded argument object.
	Arguments []byte `json:"arguments,omitempty"`
	// IssuedAt is the time the call was issued.
	IssuedAt time.Time `json:"issuedAt"`
}

// NewToolCall creates a tool call with a generated ID.
func NewToolCall(taskID, requesterAgent, toolName string, arguments []byte) *ToolCall {
	return &ToolCall{
		ID:             uuid.New().String(),
		TaskID:         taskID,
		RequesterAgent: requesterAgent,
		ToolName:       toolName,
		Arguments:      arguments,
		IssuedAt:       time.Now(),
	}
}

// ResultStatus is the terminal disposition of a tool call.
type ResultStatus string

// Tool call dispositions.
const (
	ResultOk    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

// Error kinds reported on failed tool results.
const (
	ErrorKindUnknownTool  = "unknown_tool"
	ErrorKindNotPermitted = "not_permitted"
	ErrorKindTimeout      = "timeout"
	ErrorKindTransient    = "transient"
	ErrorKindValidation   = "validation"
	ErrorKindProvider     = "provider"
	ErrorKindCancelled    = "cancelled"
)

// ToolResult is the single terminal outcome of one tool call.
type ToolResult struct {
	// CallID is the ID of the tool call this result answers.
	CallID string `json:"callId"`
	// Status is ok or error.
	Status ResultStatus `json:"status"`
	// Payload is the JSON-normalized tool output for ok results.
	Payload json.RawMessage `json:"payload,omitempty"`
	// ErrorKind classifies the failure for error results.
	ErrorKind string `json:"errorKind,omitempty"`
	// ErrorDetail is the human-readable failure description.
	ErrorDetail string `json:"errorDetail,omitempty"`
	// Attempts is the number of provider invocations made.
	Attempts int `json:"attempts"`
	// CompletedAt is the time the terminal outcome was produced.
	CompletedAt time.Time `json:"completedAt"`
}

// Content renders the result as the text handed back to the requesting
// agent: the payload for ok results, the error envelope otherwise.
func (r *ToolResult) Content() string {
	if r.Status == ResultOk {
		return string(r.Payload)
	}
	return fmt.Sprintf("tool error (%s): %s", r.ErrorKind, r.ErrorDetail)
}

// Record is the full stored state of one task: the task row plus its
// conversation messages in seq order.
type Record struct {
	Task     *Task     `json:"task"`
	Messages []Message `json:"messages"`
}

// Service is the durable store for tasks and their conversation records.
type Service interface {
	// CreateTask persists a new task. The task ID must be unoccupied.
	CreateTask(ctx context.Context, task *Task) error
	// GetTask returns the task by ID, or ErrTaskNotFound.
	GetTask(ctx context.Context, taskID string) (*Task, error)
	// ListTasks returns all tasks ordered by creation time.
	ListTasks(ctx context.Context) ([]*Task, error)
	// UpdateTaskStatus moves the task to the given status. Backward
	// transitions return ErrInvalidTransition; terminal states never
	// regress. reason is stored for failed tasks.
	UpdateTaskStatus(ctx context.Context, taskID string, status Status, reason string) error
	// AppendMessage appends msg to the task's record, assigning the next
	// seq atomically, and returns the stored message.
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// GetRecord returns the task and its messages in seq order.
	GetRecord(ctx context.Context, taskID string) (*Record, error)
	// Close releases store resources.
	Close() error
}

// exportEntry is one line of the exported conversation history.
type exportEntry struct {
	Role    string `json:"role"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// exportDocument is the on-disk conversation history format.
type exportDocument struct {
	TaskID      string        `json:"taskId"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	SavedAt     time.Time     `json:"savedAt"`
	Messages    []exportEntry `json:"messages"`
}

// ExportJSON renders the record as an indented conversation history
// document suitable for saving to a file.
func ExportJSON(record *Record) ([]byte, error) {
	if record == nil || record.Task == nil {
		return nil, errors.New("record is empty")
	}
	doc := exportDocument{
		TaskID:      record.Task.ID,
		Description: record.Task.Description,
		Status:      record.Task.Status,
		SavedAt:     time.Now(),
		Messages:    make([]exportEntry, 0, len(record.Messages)),
	}
	for _, msg := range record.Messages {
		doc.Messages = append(doc.Messages, exportEntry{
			Role:    msg.Role.String(),
			Sender:  msg.Sender,
			Content: msg.Content,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
