//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestToolSet(t *testing.T, handler http.HandlerFunc) *GitHubToolSet {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	toolSet, err := NewToolSet(
		WithBaseURL(server.URL),
		WithToken("test-token"),
		WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return toolSet
}

func callTool(t *testing.T, toolSet *GitHubToolSet, name string, req any) (any, error) {
	t.Helper()
	reqJSON, err := json.Marshal(req)
	require.NoError(t, err)
	for _, tl := range toolSet.Tools(context.Background()) {
		if tl.Declaration().Name == name {
			return tl.Call(context.Background(), reqJSON)
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil, nil
}

func TestToolSetDeclarations(t *testing.T) {
	toolSet, err := NewToolSet()
	require.NoError(t, err)
	assert.Equal(t, "github", toolSet.Name())
	assert.NoError(t, toolSet.Close())

	names := make([]string, 0)
	for _, tl := range toolSet.Tools(context.Background()) {
		names = append(names, tl.Declaration().Name)
	}
	assert.ElementsMatch(t, []string{"github_search", "github_get_file", "github_list_repos"}, names)
}

func TestGitHubSearch(t *testing.T) {
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Equal(t, "language:go http client", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"total_count": 42,
			"items": [
				{"full_name": "golang/go", "html_url": "https://github.com/golang/go",
				 "description": "The Go programming language", "stargazers_count": 120000, "language": "Go"}
			]
		}`)
	})

	result, err := callTool(t, toolSet, "github_search", searchRequest{Query: "language:go http client"})
	require.NoError(t, err)
	rsp, ok := result.(searchResponse)
	require.True(t, ok)
	assert.Equal(t, 42, rsp.TotalCount)
	require.Len(t, rsp.Results, 1)
	assert.Equal(t, "golang/go", rsp.Results[0].FullName)
	assert.Equal(t, 120000, rsp.Results[0].Stars)
}

func TestGitHubSearchEmptyQuery(t *testing.T) {
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("API must not be called for an empty query")
	})

	_, err := callTool(t, toolSet, "github_search", searchRequest{Query: "  "})
	assert.Error(t, err)
}

func TestGitHubSearchAPIError(t *testing.T) {
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	})

	_, err := callTool(t, toolSet, "github_search", searchRequest{Query: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestGitHubGetFile(t *testing.T) {
	content := "package main\n"
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/golang/go/contents/main.go", r.URL.Path)
		assert.Equal(t, "master", r.URL.Query().Get("ref"))
		w.Header().Set("Content-Type", "application/json")
		rsp := map[string]any{
			"name":     "main.go",
			"path":     "main.go",
			"sha":      "abc123",
			"size":     len(content),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		}
		require.NoError(t, json.NewEncoder(w).Encode(rsp))
	})

	result, err := callTool(t, toolSet, "github_get_file", getFileRequest{
		Owner: "golang", Repo: "go", Path: "main.go", Ref: "master",
	})
	require.NoError(t, err)
	rsp, ok := result.(getFileResponse)
	require.True(t, ok)
	assert.Equal(t, content, rsp.Contents)
	assert.Equal(t, "abc123", rsp.SHA)
}

func TestGitHubGetFileMissingParams(t *testing.T) {
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("API must not be called with missing parameters")
	})

	_, err := callTool(t, toolSet, "github_get_file", getFileRequest{Owner: "golang"})
	assert.Error(t, err)
}

func TestGitHubListRepos(t *testing.T) {
	toolSet := newTestToolSet(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/trpc-group/repos", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"full_name": "trpc-group/trpc-go", "html_url": "https://github.com/trpc-group/trpc-go",
			 "description": "A pluggable RPC framework", "stargazers_count": 900, "language": "Go"}
		]`)
	})

	result, err := callTool(t, toolSet, "github_list_repos", listReposRequest{Owner: "trpc-group"})
	require.NoError(t, err)
	rsp, ok := result.(listReposResponse)
	require.True(t, ok)
	require.Len(t, rsp.Results, 1)
	assert.Equal(t, "trpc-group/trpc-go", rsp.Results[0].FullName)
}
