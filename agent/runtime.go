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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	itelemetry "trpc.group/trpc-go/trpc-crew-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
	"trpc.group/trpc-go/trpc-crew-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// selfCorrectionContent is recorded when a step produced unusable model
// output. The real correction happens on the agent's next step.
const selfCorrectionContent = "My previous response was not usable; I will correct it on my next turn."

// Option configures a Runtime.
type Option func(*options)

type options struct {
	genConfig model.GenerationConfig
}

// WithGenerationConfig sets the generation parameters sent on every step.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(o *options) {
		o.genConfig = cfg
	}
}

// Runtime steps one agent: it renders the shared record into a model
// request, calls the backend, and classifies the reply as a message or a
// tool request. The only mutable state is the pending corrective notes.
type Runtime struct {
	def       Definition
	model     model.Model
	tools     map[string]tool.Tool
	genConfig model.GenerationConfig

	mu    sync.Mutex
	notes []string
}

// NewRuntime creates a runtime for def backed by m. The registry supplies
// declarations for the agent's allowed tools; unknown names are skipped so
// an agent may list tools that are not mounted in this process.
func NewRuntime(def Definition, m model.Model, registry *tool.Registry, opts ...Option) (*Runtime, error) {
	if def.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if m == nil {
		return nil, errors.New("model is required")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	tools := make(map[string]tool.Tool)
	if registry != nil && len(def.AllowedTools) > 0 {
		for name, callable := range registry.Tools(def.AllowedTools...) {
			tools[name] = callable
		}
	}

	return &Runtime{
		def:       def,
		model:     m,
		tools:     tools,
		genConfig: o.genConfig,
	}, nil
}

// Fork returns a runtime sharing the definition, model, and tools but
// with its own corrective notes. Concurrent tasks fork so a note from
// one task never surfaces in another.
func (r *Runtime) Fork() *Runtime {
	return &Runtime{
		def:       r.def,
		model:     r.model,
		tools:     r.tools,
		genConfig: r.genConfig,
	}
}

// Name returns the agent's name.
func (r *Runtime) Name() string {
	return r.def.Name
}

// Definition returns the agent's definition.
func (r *Runtime) Definition() Definition {
	return r.def
}

// AddCorrectiveNote schedules a system note for the agent's next step.
// Notes are consumed by the first step that uses them.
func (r *Runtime) AddCorrectiveNote(note string) {
	if note == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
}

// Step runs one model turn over the shared history. It returns
// ErrBackendUnavailable for transport failures so the caller can retry;
// unusable model output never fails the step.
func (r *Runtime) Step(ctx context.Context, history []session.Message) (*Output, error) {
	taskID := ""
	if len(history) > 0 {
		taskID = history[0].TaskID
	}
	notes := r.pendingNotes()

	request := &model.Request{
		Messages:         r.buildMessages(history, notes),
		GenerationConfig: r.genConfig,
		Tools:            r.tools,
	}

	modelName := r.model.Info().Name
	_, span := trace.Tracer.Start(ctx, itelemetry.NewChatSpanName(modelName))
	defer span.End()
	startTime := time.Now()

	final, err := r.generate(ctx, request)
	itelemetry.IncChatRequestCnt(ctx, modelName, taskID)
	itelemetry.RecordChatRequestDuration(ctx, modelName, taskID, time.Since(startTime))
	if err != nil {
		return nil, err
	}
	itelemetry.TraceChat(span, modelName, r.def.Name, taskID, final)
	if final.Usage != nil {
		itelemetry.RecordChatTokenUsage(ctx, modelName, taskID,
			int64(final.Usage.PromptTokens), int64(final.Usage.CompletionTokens))
	}

	output := r.interpret(ctx, final)
	r.consumeNotes(len(notes))
	return output, nil
}

// generate calls the backend and drains the response stream down to the
// final response.
func (r *Runtime) generate(ctx context.Context, request *model.Request) (*model.Response, error) {
	ch, err := r.model.GenerateContent(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var final *model.Response
	for rsp := range ch {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, rsp.Error.Message)
		}
		if !rsp.IsPartial {
			final = rsp
		}
	}
	if final == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: no response received", ErrBackendUnavailable)
	}
	return final, nil
}

// interpret classifies the final response as a message or a tool request.
// Unusable output schedules a corrective note instead of failing.
func (r *Runtime) interpret(ctx context.Context, final *model.Response) *Output {
	if len(final.Choices) == 0 {
		return r.selfCorrect(ctx, "Your previous reply was empty. Respond with a message for the team or a single tool call.")
	}
	msg := final.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		return r.interpretToolCall(ctx, msg)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return r.selfCorrect(ctx, "Your previous reply had no content. Respond with a message for the team or a single tool call.")
	}
	return &Output{Kind: OutputMessage, Message: msg}
}

func (r *Runtime) interpretToolCall(ctx context.Context, msg model.Message) *Output {
	if len(msg.ToolCalls) > 1 {
		log.WarnfContext(ctx, "Agent %s requested %d tool calls in one turn, keeping the first",
			r.def.Name, len(msg.ToolCalls))
		msg.ToolCalls = msg.ToolCalls[:1]
	}
	call := &msg.ToolCalls[0]

	if call.Function.Name == "" {
		return r.selfCorrect(ctx, "Your tool call had no tool name. Name one of your available tools.")
	}
	args := call.Function.Arguments
	if len(args) == 0 {
		args = []byte("{}")
		call.Function.Arguments = args
	}
	if !json.Valid(args) {
		return r.selfCorrect(ctx, fmt.Sprintf(
			"Your arguments for tool %s were not valid JSON. Send a single JSON object.", call.Function.Name))
	}
	// Some backends omit call IDs; assign one so the result can be paired.
	if call.ID == "" {
		call.ID = uuid.New().String()
	}

	return &Output{
		Kind:    OutputToolRequest,
		Message: msg,
		Request: &ToolRequest{
			CallID:    call.ID,
			ToolName:  call.Function.Name,
			Arguments: args,
		},
	}
}

func (r *Runtime) selfCorrect(ctx context.Context, note string) *Output {
	log.WarnfContext(ctx, "Agent %s produced unusable output, scheduling corrective note", r.def.Name)
	r.AddCorrectiveNote(note)
	return &Output{
		Kind:           OutputMessage,
		Message:        model.NewAssistantMessage(selfCorrectionContent),
		SelfCorrection: true,
	}
}

// buildMessages renders the shared record from this agent's point of view:
// its own turns keep their roles, everyone else's arrive as labeled user
// turns, and pending corrective notes close the request.
func (r *Runtime) buildMessages(history []session.Message, notes []string) []model.Message {
	messages := make([]model.Message, 0, len(history)+len(notes)+1)
	if r.def.Instructions != "" {
		messages = append(messages, model.NewSystemMessage(r.def.Instructions))
	}

	for _, h := range history {
		switch {
		case h.Role == model.RoleUser:
			messages = append(messages, model.NewUserMessage(h.Content))
		case h.Sender == r.def.Name && h.Role == model.RoleAssistant:
			messages = append(messages, model.Message{
				Role:      model.RoleAssistant,
				Content:   h.Content,
				ToolCalls: h.ToolCalls,
			})
		case h.Sender == r.def.Name && h.Role == model.RoleTool:
			messages = append(messages, model.NewToolMessage(h.ToolID, h.ToolName, h.Content))
		default:
			messages = append(messages, model.NewUserMessage(labelTurn(h)))
		}
	}

	for _, note := range notes {
		messages = append(messages, model.NewSystemMessage(note))
	}
	return messages
}

// labelTurn renders another member's turn as user text.
func labelTurn(h session.Message) string {
	content := h.Content
	switch {
	case h.Role == model.RoleTool:
		content = fmt.Sprintf("tool %s result: %s", h.ToolName, h.Content)
	case content == "" && len(h.ToolCalls) > 0:
		content = fmt.Sprintf("requested tool %s", h.ToolCalls[0].Function.Name)
	}
	return fmt.Sprintf("[%s]: %s", h.Sender, content)
}

func (r *Runtime) pendingNotes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	notes := make([]string, len(r.notes))
	copy(notes, r.notes)
	return notes
}

// consumeNotes drops the first n notes. Notes added during the step stay
// queued for the next one.
func (r *Runtime) consumeNotes(n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.notes) {
		n = len(r.notes)
	}
	r.notes = r.notes[n:]
}
