//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package agent provides the single-agent runtime: one persona stepping a
// shared conversation against an LLM backend.
package agent

import (
	"errors"

	"trpc.group/trpc-go/trpc-crew-go/model"
)

// ErrBackendUnavailable is returned by Step when the model backend cannot
// produce a response. Callers may retry the step.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// Definition is the stateless description of one agent: who it is, how it
// behaves, and which tools it may request.
type Definition struct {
	// Name identifies the agent within its team. Must be unique.
	Name string
	// Description is a short summary of the agent's role, shown to
	// coordinating agents.
	Description string
	// Instructions is the system persona sent on every model request.
	Instructions string
	// AllowedTools lists the registry names of the tools the agent may
	// request. Requests outside this list are rejected before dispatch.
	AllowedTools []string
}

// OutputKind discriminates the two step outcomes.
type OutputKind int

// Step outcome kinds.
const (
	// OutputMessage is a plain message for the shared conversation.
	OutputMessage OutputKind = iota
	// OutputToolRequest asks the caller to dispatch one tool call.
	OutputToolRequest
)

// ToolRequest is a single tool invocation requested by an agent.
type ToolRequest struct {
	// CallID is the tool call ID used for result pairing.
	CallID string
	// ToolName is the registry name of the requested tool.
	ToolName string
	// Arguments is the JSON-encoded argument object.
	Arguments []byte
}

// Output is the result of one agent step.
type Output struct {
	// Kind selects between a message and a tool request.
	Kind OutputKind
	// Message is the assistant message to record. Always set; for tool
	// requests it carries the tool calls for faithful history replay.
	Message model.Message
	// Request is set when Kind is OutputToolRequest.
	Request *ToolRequest
	// SelfCorrection marks a turn whose model output was unusable. The
	// runtime has scheduled a corrective note for its next step.
	SelfCorrection bool
}
