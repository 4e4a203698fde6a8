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
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/function"
)

// searchFileRequest represents the input for the search file operation.
type searchFileRequest struct {
	Path    string `json:"path" jsonschema:"description=The relative path from the base directory to search in."`
	Pattern string `json:"pattern" jsonschema:"description=The pattern to search for, e.g. '*.md', 'lib*.a', '**/*.go'"`
}

// searchFileResponse represents the output from the search file operation.
type searchFileResponse struct {
	BaseDirectory string   `json:"base_directory"`
	Path          string   `json:"path"`
	Pattern       string   `json:"pattern"`
	Files         []string `json:"files"`
	Folders       []string `json:"folders"`
	Message       string   `json:"message"`
}

// searchFile performs the search file operation.
func (f *fileToolSet) searchFile(_ context.Context, req searchFileRequest) (searchFileResponse, error) {
	rsp := searchFileResponse{
		BaseDirectory: f.baseDir,
		Path:          req.Path,
		Pattern:       req.Pattern,
	}
	if strings.TrimSpace(req.Pattern) == "" {
		rsp.Message = "Error: Pattern cannot be empty"
		return rsp, fmt.Errorf("pattern cannot be empty")
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
	// A file target matches the pattern against its own name.
	if !stat.IsDir() {
		ok, err := doublestar.PathMatch(req.Pattern, filepath.Base(targetPath))
		if err != nil {
			rsp.Message = fmt.Sprintf("Error: searching files with pattern '%s': %v", req.Pattern, err)
			return rsp, fmt.Errorf("searching files with pattern '%s': %w", req.Pattern, err)
		}
		if !ok {
			rsp.Message = fmt.Sprintf("No files found matching pattern '%s' in path '%s'", req.Pattern, req.Path)
			return rsp, nil
		}
		rsp.Files = []string{req.Path}
		rsp.Folders = []string{}
		rsp.Message = fmt.Sprintf("Found file: %s", req.Path)
		return rsp, nil
	}
	// doublestar covers both recursive and non-recursive patterns.
	matches, err := doublestar.Glob(os.DirFS(targetPath), req.Pattern)
	if err != nil {
		rsp.Message = fmt.Sprintf("Error: searching files with pattern '%s': %v", req.Pattern, err)
		return rsp, fmt.Errorf("searching files with pattern '%s': %w", req.Pattern, err)
	}
	var files []string
	var folders []string
	for _, match := range matches {
		if match == "." || match == ".." {
			continue
		}
		stat, err := os.Stat(filepath.Join(targetPath, match))
		if err != nil {
			// Skip entries that cannot be stat'ed.
			continue
		}
		relativePath := filepath.Join(req.Path, match)
		if stat.IsDir() {
			folders = append(folders, relativePath)
			continue
		}
		files = append(files, relativePath)
	}
	rsp.Files = files
	rsp.Folders = folders
	rsp.Message = fmt.Sprintf("Found %d files and %d folders matching pattern '%s' in %s",
		len(files), len(folders), req.Pattern, targetPath)
	return rsp, nil
}

// searchFileTool returns a callable tool for searching files.
func (f *fileToolSet) searchFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.searchFile,
		function.WithName("search_file"),
		function.WithDescription("Searches for files and folders matching the given glob pattern in a "+
			"directory, and returns separate lists for files and folders. The 'path' parameter is a "+
			"relative path from the base directory to search in. If 'path' is empty or not provided, "+
			"searches the base directory. Supports recursive ('**/*.go') and non-recursive ('*.txt') "+
			"patterns. If the pattern is empty, returns an error."),
	)
}
