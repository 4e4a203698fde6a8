//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/model"
)

// Accumulator collects streaming deltas and assembles the final response.
type Accumulator struct {
	// Model is the model name reported in the final response.
	Model string
	// FullText accumulates the text content across chunks.
	FullText strings.Builder
	// FinishReason holds the last finish reason seen in the stream.
	FinishReason string
	// ToolCalls accumulates tool calls across chunks.
	ToolCalls []model.ToolCall
	// Usage holds the summed token usage across chunks.
	Usage model.Usage
}

// NewAccumulator creates an accumulator for the given model name.
func NewAccumulator(modelName string) *Accumulator {
	return &Accumulator{Model: modelName}
}

// Accumulate merges a partial response into the accumulator.
func (a *Accumulator) Accumulate(rsp *model.Response) {
	if rsp == nil {
		return
	}
	for _, choice := range rsp.Choices {
		a.FullText.WriteString(choice.Delta.Content)
		a.ToolCalls = append(a.ToolCalls, choice.Delta.ToolCalls...)
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			a.FinishReason = *choice.FinishReason
		}
	}
	if rsp.Usage != nil {
		a.Usage.PromptTokens += rsp.Usage.PromptTokens
		a.Usage.CompletionTokens += rsp.Usage.CompletionTokens
		a.Usage.TotalTokens += rsp.Usage.TotalTokens
	}
}

// BuildResponse assembles the final response from the accumulated state.
func (a *Accumulator) BuildResponse() *model.Response {
	now := time.Now()
	rsp := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Created:   now.Unix(),
		Model:     a.Model,
		Timestamp: now,
		// Tool call responses leave the turn open for tool execution.
		Done:      len(a.ToolCalls) == 0,
		IsPartial: false,
		Choices: []model.Choice{{
			Index: 0,
			Message: model.Message{
				Role:      model.RoleAssistant,
				Content:   a.FullText.String(),
				ToolCalls: a.ToolCalls,
			},
			FinishReason: func() *string {
				if a.FinishReason == "" {
					return nil
				}
				reason := a.FinishReason
				return &reason
			}(),
		}},
	}
	if a.Usage.TotalTokens > 0 {
		usage := a.Usage
		rsp.Usage = &usage
	}
	return rsp
}
