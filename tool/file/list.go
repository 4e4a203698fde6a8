//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/function"
)

// listFileRequest represents the input for the list file operation.
type listFileRequest struct {
	Path string `json:"path" jsonschema:"description=The relative path from the base directory to list."`
}

// listFileResponse represents the output from the list file operation.
type listFileResponse struct {
	BaseDirectory string   `json:"base_directory"`
	Path          string   `json:"path"`
	Files         []string `json:"files"`
	Folders       []string `json:"folders"`
	Message       string   `json:"message"`
}

// listFile performs the list file operation.
func (f *fileToolSet) listFile(_ context.Context, req listFileRequest) (listFileResponse, error) {
	rsp := listFileResponse{
		BaseDirectory: f.baseDir,
		Path:          req.Path,
	}
	targetPath, err := f.resolvePath(req.Path)
	if err != nil {
		rsp.Message = fmt.Sprintf("Error: %v", err)
		return rsp, err
	}
	stat, err := os.Stat(targetPath)
	if err != nil {
		rsp.Message = fmt.Sprintf("Error: cannot access path '%s': %v", req.Path, err)
		return rsp, fmt.Errorf("accessing path '%s': %w", req.Path, err)
	}
	// A file target reports just that file.
	if !stat.IsDir() {
		fileName := filepath.Base(targetPath)
		rsp.Files = []string{fileName}
		rsp.Folders = []string{}
		rsp.Message = fmt.Sprintf("Found file: %s", fileName)
		return rsp, nil
	}
	entries, err := os.ReadDir(targetPath)
	if err != nil {
		rsp.Message = fmt.Sprintf("Error: cannot read directory '%s': %v", req.Path, err)
		return rsp, fmt.Errorf("reading directory '%s': %w", req.Path, err)
	}
	files := make([]string, 0, len(entries))
	folders := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
			continue
		}
		files = append(files, entry.Name())
	}
	rsp.Files = files
	rsp.Folders = folders
	if req.Path == "" {
		rsp.Message = fmt.Sprintf("Found %d files and %d folders in base directory", len(files), len(folders))
	} else {
		rsp.Message = fmt.Sprintf("Found %d files and %d folders in %s", len(files), len(folders), req.Path)
	}
	return rsp, nil
}

// listFileTool returns a callable tool for listing files.
func (f *fileToolSet) listFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.listFile,
		function.WithName("list_file"),
		function.WithDescription("Lists files and folders in a directory, or returns information about "+
			"a specific file. The 'path' parameter is a relative path from the base directory "+
			"(e.g., 'subdir', 'subdir/nested', 'file.txt'). If 'path' is empty or not provided, lists "+
			"the base directory."),
	)
}
