//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package file provides file operation tools scoped to a base directory.
// All paths supplied by callers are relative to the base directory and may
// not escape it.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trpc.group/trpc-go/trpc-crew-go/tool"
)

const (
	defaultMaxFileSize    = int64(10 * 1024 * 1024)
	defaultCreateDirMode  = os.FileMode(0755)
	defaultCreateFileMode = os.FileMode(0644)
)

// Option configures the file tool set.
type Option func(*fileToolSet)

// WithBaseDir sets the base directory all file operations are rooted at.
// Defaults to the current working directory.
func WithBaseDir(baseDir string) Option {
	return func(f *fileToolSet) {
		f.baseDir = baseDir
	}
}

// WithMaxFileSize sets the maximum file size in bytes the read tool will
// return. Defaults to 10 MiB.
func WithMaxFileSize(maxFileSize int64) Option {
	return func(f *fileToolSet) {
		f.maxFileSize = maxFileSize
	}
}

// fileToolSet bundles the file operation tools sharing one base directory.
type fileToolSet struct {
	baseDir        string
	maxFileSize    int64
	createDirMode  os.FileMode
	createFileMode os.FileMode
}

// NewToolSet creates a file tool set. The base directory is created if it
// does not exist yet.
func NewToolSet(opts ...Option) (tool.ToolSet, error) {
	f := &fileToolSet{
		maxFileSize:    defaultMaxFileSize,
		createDirMode:  defaultCreateDirMode,
		createFileMode: defaultCreateFileMode,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		f.baseDir = cwd
	}
	absBase, err := filepath.Abs(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory '%s': %w", f.baseDir, err)
	}
	f.baseDir = absBase
	if err := os.MkdirAll(f.baseDir, f.createDirMode); err != nil {
		return nil, fmt.Errorf("creating base directory '%s': %w", f.baseDir, err)
	}
	return f, nil
}

// Tools returns the callable tools of the set.
func (f *fileToolSet) Tools(context.Context) []tool.CallableTool {
	return []tool.CallableTool{
		f.readFileTool(),
		f.saveFileTool(),
		f.listFileTool(),
		f.searchFileTool(),
	}
}

// Name returns the tool set name.
func (f *fileToolSet) Name() string { return "file" }

// Close releases resources held by the tool set.
func (f *fileToolSet) Close() error { return nil }

// resolvePath joins relPath onto the base directory and rejects paths that
// escape it.
func (f *fileToolSet) resolvePath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path '%s' must be relative to the base directory", relPath)
	}
	resolved := filepath.Clean(filepath.Join(f.baseDir, relPath))
	if resolved != f.baseDir &&
		!strings.HasPrefix(resolved, f.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' escapes the base directory", relPath)
	}
	return resolved, nil
}
