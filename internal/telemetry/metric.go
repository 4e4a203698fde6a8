//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter and metric name constants.
const (
	MeterNameChat        = "trpc_crew_go.internal.chat"
	MeterNameExecuteTool = "trpc_crew_go.internal.execute_tool"

	MetricClientRequestCnt             = "trpc_crew_go.client.request_cnt"
	MetricGenAIClientTokenUsage        = "gen_ai.client.token.usage" // #nosec G101 - metric name, not a credential.
	MetricGenAIClientOperationDuration = "gen_ai.client.operation.duration"

	KeyInputTokenType  = "input" // #nosec G101 - metric key value, not a credential.
	KeyOutputTokenType = "output"
)

// Package-level instruments default to noop so framework code can record
// unconditionally; metric.InitMeterProvider swaps in real ones.
var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	ChatMeter                         metric.Meter            = MeterProvider.Meter(MeterNameChat)
	ChatMetricClientRequestCnt        metric.Int64Counter     = noop.Int64Counter{}
	ChatMetricClientTokenUsage        metric.Int64Histogram   = noop.Int64Histogram{}
	ChatMetricClientOperationDuration metric.Float64Histogram = noop.Float64Histogram{}

	ExecuteToolMeter                         metric.Meter            = MeterProvider.Meter(MeterNameExecuteTool)
	ExecuteToolMetricClientRequestCnt        metric.Int64Counter     = noop.Int64Counter{}
	ExecuteToolMetricClientOperationDuration metric.Float64Histogram = noop.Float64Histogram{}
)

// IncChatRequestCnt counts one model request.
func IncChatRequestCnt(ctx context.Context, modelName, taskID string) {
	ChatMetricClientRequestCnt.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationChat),
			attribute.String(KeyGenAIRequestModel, modelName),
			attribute.String(KeyGenAIConversationID, taskID),
		))
}

// RecordChatTokenUsage records prompt and completion token usage for one
// model request.
func RecordChatTokenUsage(ctx context.Context, modelName, taskID string, promptTokens, completionTokens int64) {
	ChatMetricClientTokenUsage.Record(ctx, promptTokens,
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationChat),
			attribute.String(KeyGenAIRequestModel, modelName),
			attribute.String(KeyGenAIConversationID, taskID),
			attribute.String(KeyGenAITokenType, KeyInputTokenType),
		))
	ChatMetricClientTokenUsage.Record(ctx, completionTokens,
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationChat),
			attribute.String(KeyGenAIRequestModel, modelName),
			attribute.String(KeyGenAIConversationID, taskID),
			attribute.String(KeyGenAITokenType, KeyOutputTokenType),
		))
}

// RecordChatRequestDuration records the duration of one model request.
func RecordChatRequestDuration(ctx context.Context, modelName, taskID string, duration time.Duration) {
	ChatMetricClientOperationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationChat),
			attribute.String(KeyGenAIRequestModel, modelName),
			attribute.String(KeyGenAIConversationID, taskID),
		))
}

// IncExecuteToolRequestCnt counts one tool invocation.
func IncExecuteToolRequestCnt(ctx context.Context, toolName, taskID string) {
	ExecuteToolMetricClientRequestCnt.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationExecuteTool),
			attribute.String(KeyGenAIToolName, toolName),
			attribute.String(KeyGenAIConversationID, taskID),
		))
}

// RecordExecuteToolOperationDuration records the duration of one tool
// invocation.
func RecordExecuteToolOperationDuration(ctx context.Context, toolName, taskID string, duration time.Duration) {
	ExecuteToolMetricClientOperationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String(KeyGenAIOperationName, OperationExecuteTool),
			attribute.String(KeyGenAIToolName, toolName),
			attribute.String(KeyGenAIConversationID, taskID),
		))
}
