//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package gateway dispatches tool calls against the registry with
// per-attempt timeouts, bounded retries, and a uniform result envelope.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	itelemetry "trpc.group/trpc-go/trpc-crew-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/mcp"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultMaxRetries     = 2
)

// Option configures a Gateway.
type Option func(*options)

type options struct {
	attemptTimeout time.Duration
	maxRetries     int
}

var defaultOptions = options{
	attemptTimeout: defaultAttemptTimeout,
	maxRetries:     defaultMaxRetries,
}

// WithAttemptTimeout sets the per-attempt timeout. Values <= 0 keep the
// default.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// WithMaxRetries sets how many extra attempts follow a transient failure
// or timeout. Negative values keep the default.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// Gateway is the single dispatch point for tool calls. Every invocation
// ends in exactly one terminal ToolResult; callers never see a Go error.
type Gateway struct {
	registry       *tool.Registry
	attemptTimeout time.Duration
	maxRetries     int
}

// New creates a gateway over the given registry.
func New(registry *tool.Registry, opts ...Option) *Gateway {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Gateway{
		registry:       registry,
		attemptTimeout: o.attemptTimeout,
		maxRetries:     o.maxRetries,
	}
}

// Invoke executes the tool call and returns its terminal result. Transient
// failures and per-attempt timeouts are retried up to MaxRetries; validation
// failures, unknown tools, and cancellation are terminal immediately.
func (g *Gateway) Invoke(ctx context.Context, call *session.ToolCall) *session.ToolResult {
	_, span := trace.Tracer.Start(ctx, itelemetry.NewExecuteToolSpanName(call.ToolName))
	defer span.End()
	startTime := time.Now()

	result, output, callErr := g.invoke(ctx, call)

	decl := g.lookupDeclaration(call.ToolName)
	itelemetry.TraceToolCall(span, decl, call.ID, call.Arguments, output, result.ErrorKind, callErr)
	itelemetry.IncExecuteToolRequestCnt(ctx, call.ToolName, call.TaskID)
	itelemetry.RecordExecuteToolOperationDuration(ctx, call.ToolName, call.TaskID, time.Since(startTime))
	return result
}

func (g *Gateway) invoke(ctx context.Context, call *session.ToolCall) (*session.ToolResult, any, error) {
	callable, err := g.registry.Resolve(call.ToolName)
	if err != nil {
		return errorResult(call, session.ErrorKindUnknownTool, 0, err), nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries+1; attempt++ {
		if ctx.Err() != nil {
			return errorResult(call, session.ErrorKindCancelled, attempt-1, ctx.Err()), nil, ctx.Err()
		}

		output, err := g.callOnce(ctx, callable, call.Arguments)

		// A cancelled parent context discards any in-flight outcome.
		if ctx.Err() != nil {
			return errorResult(call, session.ErrorKindCancelled, attempt, ctx.Err()), nil, ctx.Err()
		}
		if err == nil {
			payload := normalizePayload(output)
			return &session.ToolResult{
				CallID:      call.ID,
				Status:      session.ResultOk,
				Payload:     payload,
				Attempts:    attempt,
				CompletedAt: time.Now(),
			}, output, nil
		}

		kind := classifyError(err)
		if kind == session.ErrorKindValidation || kind == session.ErrorKindProvider {
			return errorResult(call, kind, attempt, err), nil, err
		}

		lastErr = err
		if attempt <= g.maxRetries {
			log.WarnfContext(ctx, "Tool %s attempt %d/%d failed (%s), retrying: %v",
				call.ToolName, attempt, g.maxRetries+1, kind, err)
			continue
		}
		return errorResult(call, kind, attempt, err), nil, err
	}
	// Unreachable: the loop always returns. Kept for the compiler.
	return errorResult(call, session.ErrorKindProvider, g.maxRetries+1, lastErr), nil, lastErr
}

type callOutcome struct {
	output any
	err    error
}

// callOnce runs a single provider attempt under the per-attempt timeout.
// The call runs in its own goroutine so the deadline holds even for
// providers that ignore their context; panics become errors.
func (g *Gateway) callOnce(ctx context.Context, callable tool.CallableTool, args []byte) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorfContext(ctx, "Tool execution panic: %v", r)
				done <- callOutcome{err: fmt.Errorf("tool execution panic: %v", r)}
			}
		}()
		output, err := callable.Call(attemptCtx, args)
		done <- callOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.output, outcome.err
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	}
}

// classifyError maps a provider error to a result error kind. Timeouts and
// transient failures are the retryable kinds.
func classifyError(err error) string {
	switch {
	case tool.IsValidationError(err):
		return session.ErrorKindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return session.ErrorKindTimeout
	case mcp.IsRetryableError(err):
		return session.ErrorKindTransient
	default:
		return session.ErrorKindProvider
	}
}

// normalizePayload renders the provider output as valid JSON. Outputs that
// already are JSON pass through untouched.
func normalizePayload(output any) json.RawMessage {
	switch v := output.(type) {
	case nil:
		return json.RawMessage("null")
	case json.RawMessage:
		if json.Valid(v) {
			return v
		}
		return marshalOrQuote(string(v))
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v)
		}
		return marshalOrQuote(string(v))
	case string:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v)
		}
		return marshalOrQuote(v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return data
		}
		return marshalOrQuote(fmt.Sprintf("%v", v))
	}
}

func marshalOrQuote(s string) json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`"<unserializable output>"`)
	}
	return data
}

func errorResult(call *session.ToolCall, kind string, attempts int, err error) *session.ToolResult {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &session.ToolResult{
		CallID:      call.ID,
		Status:      session.ResultError,
		ErrorKind:   kind,
		ErrorDetail: detail,
		Attempts:    attempts,
		CompletedAt: time.Now(),
	}
}

func (g *Gateway) lookupDeclaration(name string) *tool.Declaration {
	if callable, err := g.registry.Resolve(name); err == nil {
		if decl := callable.Declaration(); decl != nil {
			return decl
		}
	}
	return &tool.Declaration{Name: name}
}
