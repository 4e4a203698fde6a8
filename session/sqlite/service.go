//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides the SQLite session service implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.

	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
)

var _ session.Service = (*Service)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	task_id    TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	sender     TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	tool_calls TEXT NOT NULL DEFAULT '',
	tool_id    TEXT NOT NULL DEFAULT '',
	tool_name  TEXT NOT NULL DEFAULT '',
	timestamp  DATETIME NOT NULL,
	PRIMARY KEY (task_id, seq),
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);
`

// defaultBusyTimeout bounds how long a writer waits for the database lock.
const defaultBusyTimeout = 5 * time.Second

// Option configures the SQLite session service.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// Service is the SQLite session service. It persists tasks and their
// conversation messages in a single database file.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the database at path and ensures the
// schema exists. The caller is responsible for calling Close.
func NewService(path string, opts ...Option) (*Service, error) {
	o := options{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s failed: %w", path, err)
	}
	// A single connection serializes writers, which keeps seq assignment
	// race free and avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", o.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema failed: %w", err)
	}
	return &Service{db: db}, nil
}

// CreateTask persists a new task.
func (s *Service) CreateTask(ctx context.Context, task *session.Task) error {
	if task == nil || task.ID == "" {
		return session.ErrTaskIDRequired
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, description, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.Description, string(task.Status), task.Reason,
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert task failed: %w", err)
	}
	return nil
}

// GetTask returns the task by ID.
func (s *Service) GetTask(ctx context.Context, taskID string) (*session.Task, error) {
	if taskID == "" {
		return nil, session.ErrTaskIDRequired
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, status, reason, created_at, updated_at
		FROM tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrTaskNotFound, taskID)
	}
	return task, err
}

// ListTasks returns all tasks ordered by creation time.
func (s *Service) ListTasks(ctx context.Context) ([]*session.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, status, reason, created_at, updated_at
		FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks failed: %w", err)
	}
	defer rows.Close()

	var tasks []*session.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus moves the task to the given status inside a transaction
// so the transition check and the write observe the same row.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID string, status session.Status, reason string) error {
	if taskID == "" {
		return session.ErrTaskIDRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, taskID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", session.ErrTaskNotFound, taskID)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("query task status failed: %w", err)
	}
	if !session.Status(current).CanTransitionTo(status) {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s -> %s", session.ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now().UTC(), taskID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update task status failed: %w", err)
	}
	return tx.Commit()
}

// AppendMessage appends msg to the task's record. The next seq is computed
// and inserted in one transaction, so it stays strictly increasing and
// gapless even with concurrent writers.
func (s *Service) AppendMessage(ctx context.Context, msg session.Message) (session.Message, error) {
	if msg.TaskID == "" {
		return session.Message{}, session.ErrTaskIDRequired
	}

	stored := msg.Clone()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}

	toolCalls := ""
	if len(stored.ToolCalls) > 0 {
		data, err := json.Marshal(stored.ToolCalls)
		if err != nil {
			return session.Message{}, fmt.Errorf("marshal tool calls failed: %w", err)
		}
		toolCalls = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Message{}, fmt.Errorf("begin transaction failed: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, stored.TaskID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return session.Message{}, fmt.Errorf("%w: %s", session.ErrTaskNotFound, stored.TaskID)
	}
	if err != nil {
		_ = tx.Rollback()
		return session.Message{}, fmt.Errorf("query task failed: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE task_id = ?`,
		stored.TaskID,
	).Scan(&stored.Seq); err != nil {
		_ = tx.Rollback()
		return session.Message{}, fmt.Errorf("assign seq failed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (task_id, seq, sender, role, content, tool_calls, tool_id, tool_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.TaskID, stored.Seq, stored.Sender, string(stored.Role),
		stored.Content, toolCalls, stored.ToolID, stored.ToolName, stored.Timestamp.UTC(),
	); err != nil {
		_ = tx.Rollback()
		return session.Message{}, fmt.Errorf("insert message failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), stored.TaskID,
	); err != nil {
		_ = tx.Rollback()
		return session.Message{}, fmt.Errorf("update task failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return session.Message{}, fmt.Errorf("commit failed: %w", err)
	}
	return stored, nil
}

// GetRecord returns the task and its messages in seq order.
func (s *Service) GetRecord(ctx context.Context, taskID string) (*session.Record, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, seq, sender, role, content, tool_calls, tool_id, tool_name, timestamp
		FROM messages WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query messages failed: %w", err)
	}
	defer rows.Close()

	messages := make([]session.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &session.Record{Task: task, Messages: messages}, nil
}

// Close releases the underlying database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*session.Task, error) {
	var task session.Task
	var status string
	if err := row.Scan(
		&task.ID, &task.Description, &status, &task.Reason,
		&task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task failed: %w", err)
	}
	task.Status = session.Status(status)
	return &task, nil
}

func scanMessage(row scanner) (session.Message, error) {
	var msg session.Message
	var role, toolCalls string
	if err := row.Scan(
		&msg.TaskID, &msg.Seq, &msg.Sender, &role,
		&msg.Content, &toolCalls, &msg.ToolID, &msg.ToolName, &msg.Timestamp,
	); err != nil {
		return session.Message{}, fmt.Errorf("scan message failed: %w", err)
	}
	msg.Role = model.Role(role)
	if toolCalls != "" {
		if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return session.Message{}, fmt.Errorf("unmarshal tool calls failed: %w", err)
		}
	}
	return msg, nil
}
