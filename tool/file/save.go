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

	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/function"
)

// saveFileRequest represents the input for the save file operation.
type saveFileRequest struct {
	Contents  string `json:"contents" jsonschema:"description=The contents to save to the file."`
	FileName  string `json:"file_name" jsonschema:"description=The relative filepath from the base directory to save."`
	Overwrite bool   `json:"overwrite" jsonschema:"description=Whether to overwrite the file if it already exists."`
}

// saveFileResponse represents the output from the save file operation.
type saveFileResponse struct {
	BaseDirectory string `json:"base_directory"`
	FileName      string `json:"file_name"`
	Message       string `json:"message"`
}

// saveFile performs the save file operation.
func (f *fileToolSet) saveFile(_ context.Context, req saveFileRequest) (saveFileResponse, error) {
	rsp := saveFileResponse{
		BaseDirectory: f.baseDir,
		FileName:      req.FileName,
	}
	if strings.TrimSpace(req.FileName) == "" {
		rsp.Message = "Error: File name cannot be empty"
		return rsp, fmt.Errorf("file name cannot be empty")
	}
	filePath, err := f.resolvePath(req.FileName)
	if err != nil {
		rsp.Message = fmt.Sprintf("Error: %v", err)
		return rsp, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), f.createDirMode); err != nil {
		rsp.Message = fmt.Sprintf("Error: cannot create directory: %v", err)
		return rsp, fmt.Errorf("creating directory: %w", err)
	}
	if !req.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			rsp.Message = fmt.Sprintf("Error: file %s already exists and overwrite is disabled", req.FileName)
			return rsp, fmt.Errorf("file %s already exists and overwrite is disabled", req.FileName)
		}
	}
	if err := os.WriteFile(filePath, []byte(req.Contents), f.createFileMode); err != nil {
		rsp.Message = fmt.Sprintf("Error: cannot write to file '%s': %v", req.FileName, err)
		return rsp, fmt.Errorf("writing to file '%s': %w", req.FileName, err)
	}
	rsp.Message = fmt.Sprintf("Successfully saved: %s", req.FileName)
	return rsp, nil
}

// saveFileTool returns a callable tool for saving a file.
func (f *fileToolSet) saveFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.saveFile,
		function.WithName("save_file"),
		function.WithDescription("Saves the contents to a file called 'file_name' and returns the file "+
			"name if successful. Use this tool to create or update a file. The 'file_name' parameter is "+
			"a relative path from the base directory (e.g., 'subdir/file.txt'). Missing parent "+
			"directories are created. If 'overwrite' is false and the file already exists, returns an "+
			"error instead of replacing it."),
	)
}
