//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package trace

import (
	"context"
	"os"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestGRPCTracesEndpoint(t *testing.T) {
	const (
		customEndpoint  = "custom-trace:4317"
		genericEndpoint = "generic-endpoint:4317"
	)

	// Backup originals.
	origTrace := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	origGeneric := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	// Restore at the end.
	defer func() {
		_ = os.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", origTrace)
		_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", origGeneric)
	}()

	// Case 1: specific variable has precedence over generic.
	_ = os.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", customEndpoint)
	_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", genericEndpoint)
	if ep := tracesEndpoint("grpc"); ep != customEndpoint {
		t.Fatalf("expected %s, got %s", customEndpoint, ep)
	}

	// Case 2: fallback to generic when specific is empty.
	_ = os.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", genericEndpoint)
	if ep := tracesEndpoint("grpc"); ep != genericEndpoint {
		t.Fatalf("expected %s, got %s", genericEndpoint, ep)
	}

	// Case 3: default when none set.
	_ = os.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if ep := tracesEndpoint("grpc"); ep == "" {
		t.Fatalf("expected non-empty default endpoint")
	}
	if ep := tracesEndpoint("http"); ep != "localhost:4318" {
		t.Fatalf("expected localhost:4318 for http, got %s", ep)
	}
}

// TestStartAndClean exercises the happy path of Start and the returned
// cleanup.
func TestStartAndClean(t *testing.T) {
	ctx := context.Background()
	clean, err := Start(ctx,
		WithEndpoint("localhost:4317"),
		WithServiceName("trace-test"),
	)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if clean == nil {
		t.Fatalf("expected non-nil cleanup function")
	}
	// Start a span to ensure Tracer is initialized.
	_, span := Tracer.Start(ctx, "test-span")
	span.End()
	_ = clean() // Ignore cleanup error as no collector is running in tests.
}

func TestOptions(t *testing.T) {
	opts := &options{}

	WithEndpoint("endpoint:4317")(opts)
	if opts.tracesEndpoint != "endpoint:4317" {
		t.Errorf("WithEndpoint not applied: %s", opts.tracesEndpoint)
	}

	WithProtocol("http")(opts)
	if opts.protocol != "http" {
		t.Errorf("WithProtocol not applied: %s", opts.protocol)
	}

	WithServiceName("svc")(opts)
	WithServiceNamespace("ns")(opts)
	WithServiceVersion("v1.2.3")(opts)
	if opts.serviceName != "svc" || opts.serviceNamespace != "ns" || opts.serviceVersion != "v1.2.3" {
		t.Errorf("service options not applied: %+v", opts)
	}

	WithResourceAttributes()(opts)
	if opts.resourceAttributes != nil {
		t.Errorf("empty WithResourceAttributes should be a no-op")
	}
	WithResourceAttributes(attribute.String("tenant", "demo"))(opts)
	if opts.resourceAttributes == nil || len(*opts.resourceAttributes) != 1 {
		t.Errorf("WithResourceAttributes not applied")
	}
}

func TestBuildResource(t *testing.T) {
	ctx := context.Background()
	res, err := buildResource(ctx, &options{
		serviceName:      "svc",
		serviceNamespace: "ns",
		serviceVersion:   "v0.0.1",
	})
	if err != nil {
		t.Fatalf("buildResource returned error: %v", err)
	}

	found := false
	for _, attr := range res.Attributes() {
		if attr.Key == semconv.ServiceNameKey && attr.Value.AsString() == "svc" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected service.name attribute in resource")
	}
}
