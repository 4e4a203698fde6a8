//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// capturingLogger records formatted calls so the package-level helpers can
// be asserted without parsing zap output.
type capturingLogger struct {
	lines []string
}

func (c *capturingLogger) record(level string, args ...any) {
	var sb strings.Builder
	sb.WriteString(level)
	for range args {
		sb.WriteString(" %v")
	}
	c.lines = append(c.lines, sb.String())
}

func (c *capturingLogger) Debug(args ...any)                 { c.record("debug", args...) }
func (c *capturingLogger) Debugf(format string, args ...any) { c.lines = append(c.lines, "debugf "+format) }
func (c *capturingLogger) Info(args ...any)                  { c.record("info", args...) }
func (c *capturingLogger) Infof(format string, args ...any)  { c.lines = append(c.lines, "infof "+format) }
func (c *capturingLogger) Warn(args ...any)                  { c.record("warn", args...) }
func (c *capturingLogger) Warnf(format string, args ...any)  { c.lines = append(c.lines, "warnf "+format) }
func (c *capturingLogger) Error(args ...any)                 { c.record("error", args...) }
func (c *capturingLogger) Errorf(format string, args ...any) { c.lines = append(c.lines, "errorf "+format) }
func (c *capturingLogger) Fatal(args ...any)                 { c.record("fatal", args...) }
func (c *capturingLogger) Fatalf(format string, args ...any) { c.lines = append(c.lines, "fatalf "+format) }

func TestFreeFunctionsDelegateToDefault(t *testing.T) {
	orig := Default
	defer func() { Default = orig }()

	cap := &capturingLogger{}
	Default = cap

	Debug("a")
	Debugf("fmt %s", "a")
	Info("a")
	Infof("fmt %s", "a")
	Warn("a")
	Warnf("fmt %s", "a")
	Error("a")
	Errorf("fmt %s", "a")

	require.Len(t, cap.lines, 8)
	require.Equal(t, "debug %v", cap.lines[0])
	require.Equal(t, "errorf fmt %s", cap.lines[7])
}

func TestContextHelpersDelegateToContextDefault(t *testing.T) {
	orig := ContextDefault
	defer func() { ContextDefault = orig }()

	cap := &capturingLogger{}
	ContextDefault = cap

	ctx := context.Background()
	InfoContext(ctx, "a")
	InfofContext(ctx, "fmt %s", "a")
	WarnContext(ctx, "a")
	ErrorfContext(ctx, "fmt %s", "a")

	require.Len(t, cap.lines, 4)
	require.Equal(t, "info %v", cap.lines[0])
	require.Equal(t, "errorf fmt %s", cap.lines[3])
}

func TestSetLevelFiltersOutput(t *testing.T) {
	orig := Default
	defer func() {
		Default = orig
		SetLevel(LevelInfo)
	}()

	var buf bytes.Buffer
	Default = New(&buf)

	SetLevel(LevelError)
	Info("should be filtered")
	require.Empty(t, buf.String())

	Error("should appear")
	require.Contains(t, buf.String(), "should appear")

	SetLevel(LevelDebug)
	Debug("now visible")
	require.Contains(t, buf.String(), "now visible")
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	orig := Default
	defer func() {
		Default = orig
		SetLevel(LevelInfo)
	}()

	var buf bytes.Buffer
	Default = New(&buf)

	SetLevel("verbose")
	Debug("hidden")
	require.NotContains(t, buf.String(), "hidden")
	Info("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestTracefGatedByFlag(t *testing.T) {
	orig := Default
	defer func() {
		Default = orig
		SetTraceEnabled(false)
		SetLevel(LevelInfo)
	}()

	var buf bytes.Buffer
	Default = New(&buf)
	SetLevel(LevelDebug)

	Tracef("invisible %d", 1)
	require.Empty(t, buf.String())

	SetTraceEnabled(true)
	Tracef("visible %d", 2)
	require.Contains(t, buf.String(), "[TRACE] visible 2")
}
