//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry provides tracing and metrics plumbing shared by the
// framework packages.
package telemetry

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// grpcDial allows tests to inject a custom dialer. In production it points
// to grpc.Dial.
var grpcDial = grpc.Dial

// Telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-crew"
	InstrumentName   = "trpc.crew.go"

	OperationExecuteTool = "execute_tool"
	OperationChat        = "chat"
	OperationInvokeAgent = "invoke_agent"
	OperationRunTask     = "run_task"
)

// NewChatSpanName creates a chat span name, e.g. "chat gpt-4o-mini".
func NewChatSpanName(requestModel string) string {
	if requestModel == "" {
		return OperationChat
	}
	return fmt.Sprintf("%s %s", OperationChat, requestModel)
}

// NewExecuteToolSpanName creates an execute tool span name.
func NewExecuteToolSpanName(toolName string) string {
	return fmt.Sprintf("%s %s", OperationExecuteTool, toolName)
}

// NewInvokeAgentSpanName creates an invoke agent span name.
func NewInvokeAgentSpanName(agentName string) string {
	return fmt.Sprintf("%s %s", OperationInvokeAgent, agentName)
}

// NewRunTaskSpanName creates a run task span name.
func NewRunTaskSpanName(taskID string) string {
	return fmt.Sprintf("%s %s", OperationRunTask, taskID)
}

const (
	// ProtocolGRPC uses gRPC protocol for the OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for the OTLP exporter.
	ProtocolHTTP string = "http"
)

// Telemetry attribute constants, following the OpenTelemetry GenAI semantic
// conventions where they apply.
var (
	ResourceServiceNamespace = "trpc-go-crew"
	ResourceServiceName      = "telemetry"
	ResourceServiceVersion   = "v0.1.0"

	KeyTaskID   = "trpc.go.crew.task_id"
	KeyTaskTurn = "trpc.go.crew.task_turn"

	KeyGenAIOperationName = "gen_ai.operation.name"
	KeyGenAISystem        = "gen_ai.system"

	KeyGenAIRequestModel          = "gen_ai.request.model"
	KeyGenAIAgentName             = "gen_ai.agent.name"
	KeyGenAIAgentDescription      = "gen_ai.agent.description"
	KeyGenAIConversationID        = "gen_ai.conversation.id"
	KeyGenAIUsageInputTokens      = "gen_ai.usage.input_tokens"  // #nosec G101 - metric key name, not a credential.
	KeyGenAIUsageOutputTokens     = "gen_ai.usage.output_tokens" // #nosec G101 - metric key name, not a credential.
	KeyGenAIResponseFinishReasons = "gen_ai.response.finish_reasons"
	KeyGenAIResponseID            = "gen_ai.response.id"
	KeyGenAIResponseModel         = "gen_ai.response.model"
	KeyGenAITokenType             = "gen_ai.token.type" // #nosec G101 - metric key name, not a credential.

	KeyGenAIToolName          = "gen_ai.tool.name"
	KeyGenAIToolDescription   = "gen_ai.tool.description"
	KeyGenAIToolCallID        = "gen_ai.tool.call.id"
	KeyGenAIToolCallArguments = "gen_ai.tool.call.arguments"
	KeyGenAIToolCallResult    = "gen_ai.tool.call.result"

	KeyErrorType          = "error.type"
	KeyErrorMessage       = "error.message"
	ValueDefaultErrorType = "_OTHER"

	SystemTRPCGoCrew = "trpc.go.crew"
)

// TraceToolCall records a tool invocation on span. errorType categorizes
// callErr; ValueDefaultErrorType is used when empty.
func TraceToolCall(
	span trace.Span,
	declaration *tool.Declaration,
	callID string,
	args []byte,
	output any,
	errorType string,
	callErr error,
) {
	span.SetAttributes(
		attribute.String(KeyGenAISystem, SystemTRPCGoCrew),
		attribute.String(KeyGenAIOperationName, OperationExecuteTool),
		attribute.String(KeyGenAIToolName, declaration.Name),
		attribute.String(KeyGenAIToolDescription, declaration.Description),
		attribute.String(KeyGenAIToolCallID, callID),
		attribute.String(KeyGenAIToolCallArguments, string(args)),
	)
	if callErr != nil {
		if errorType == "" {
			errorType = ValueDefaultErrorType
		}
		span.SetStatus(codes.Error, callErr.Error())
		span.SetAttributes(
			attribute.String(KeyErrorType, errorType),
			attribute.String(KeyErrorMessage, callErr.Error()),
		)
		return
	}
	if bts, err := json.Marshal(output); err == nil {
		span.SetAttributes(attribute.String(KeyGenAIToolCallResult, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyGenAIToolCallResult, "<not json serializable>"))
	}
}

// TraceChat records a model call on span.
func TraceChat(span trace.Span, modelName, agentName, taskID string, rsp *model.Response) {
	span.SetAttributes(
		attribute.String(KeyGenAISystem, SystemTRPCGoCrew),
		attribute.String(KeyGenAIOperationName, OperationChat),
		attribute.String(KeyGenAIRequestModel, modelName),
		attribute.String(KeyGenAIAgentName, agentName),
		attribute.String(KeyGenAIConversationID, taskID),
	)
	if rsp == nil {
		return
	}
	if rsp.ID != "" {
		span.SetAttributes(attribute.String(KeyGenAIResponseID, rsp.ID))
	}
	if rsp.Model != "" {
		span.SetAttributes(attribute.String(KeyGenAIResponseModel, rsp.Model))
	}
	if len(rsp.Choices) > 0 {
		finishReasons := make([]string, 0, len(rsp.Choices))
		for _, choice := range rsp.Choices {
			if choice.FinishReason != nil {
				finishReasons = append(finishReasons, *choice.FinishReason)
			} else {
				finishReasons = append(finishReasons, "")
			}
		}
		span.SetAttributes(attribute.StringSlice(KeyGenAIResponseFinishReasons, finishReasons))
	}
	if rsp.Usage != nil {
		span.SetAttributes(
			attribute.Int(KeyGenAIUsageInputTokens, rsp.Usage.PromptTokens),
			attribute.Int(KeyGenAIUsageOutputTokens, rsp.Usage.CompletionTokens),
		)
	}
	if e := rsp.Error; e != nil {
		span.SetStatus(codes.Error, e.Message)
		span.SetAttributes(
			attribute.String(KeyErrorType, e.Type),
			attribute.String(KeyErrorMessage, e.Message),
		)
	}
}

// NewGRPCConn creates a gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in
	// production.
	conn, err := grpcDial(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
