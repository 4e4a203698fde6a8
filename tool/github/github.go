//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package github provides GitHub REST API tools for agents.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/function"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultUserAgent  = "trpc-crew-go-github/1.0"
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 5
	defaultName       = "github"

	// tokenEnv names the environment variable holding the API token.
	tokenEnv = "GITHUB_TOKEN"
)

// config holds the configuration for the GitHub tool set.
type config struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	maxResults int
}

// Option is a functional option for configuring the GitHub tool set.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithToken sets the API token. Defaults to the GITHUB_TOKEN environment
// variable.
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// WithMaxResults sets the maximum number of search results.
func WithMaxResults(maxResults int) Option {
	return func(c *config) {
		c.maxResults = maxResults
	}
}

// GitHubToolSet implements the ToolSet interface for GitHub operations.
type GitHubToolSet struct {
	tools []tool.CallableTool
}

// Tools implements the ToolSet interface.
func (g *GitHubToolSet) Tools(_ context.Context) []tool.CallableTool {
	return g.tools
}

// Name implements the ToolSet interface.
func (g *GitHubToolSet) Name() string {
	return defaultName
}

// Close implements the ToolSet interface.
func (g *GitHubToolSet) Close() error {
	return nil
}

// NewToolSet creates a new GitHub tool set with the given options.
func NewToolSet(opts ...Option) (*GitHubToolSet, error) {
	cfg := &config{
		baseURL:   defaultBaseURL,
		token:     os.Getenv(tokenEnv),
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	githubClient := newClient(cfg.baseURL, cfg.token, cfg.userAgent, cfg.httpClient)
	tools := []tool.CallableTool{
		createSearchTool(githubClient, cfg),
		createGetFileTool(githubClient),
		createListReposTool(githubClient, cfg),
	}
	return &GitHubToolSet{tools: tools}, nil
}

// ===== Repository Search Tool =====

type searchRequest struct {
	Query string `json:"query" jsonschema:"description=Search query using GitHub search syntax, e.g. 'language:go topic:agent'"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of results (default: 5)"`
}

type searchResponse struct {
	Query      string           `json:"query"`
	TotalCount int              `json:"total_count"`
	Results    []searchRepoItem `json:"results"`
	Summary    string           `json:"summary"`
}

type searchRepoItem struct {
	FullName    string `json:"full_name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Stars       int    `json:"stars"`
	Language    string `json:"language"`
}

func createSearchTool(githubClient *client, cfg *config) tool.CallableTool {
	searchFunc := func(ctx context.Context, req searchRequest) (searchResponse, error) {
		if strings.TrimSpace(req.Query) == "" {
			return searchResponse{
				Summary: "Error: query cannot be empty",
			}, fmt.Errorf("query cannot be empty")
		}
		limit := req.Limit
		if limit <= 0 || limit > cfg.maxResults {
			limit = cfg.maxResults
		}
		params := url.Values{}
		params.Set("q", req.Query)
		params.Set("per_page", strconv.Itoa(limit))
		params.Set("sort", "stars")

		var apiRsp searchReposResponse
		if err := githubClient.get(ctx, "/search/repositories", params, &apiRsp); err != nil {
			return searchResponse{
				Query:   req.Query,
				Summary: fmt.Sprintf("Error: %v", err),
			}, err
		}
		results := make([]searchRepoItem, 0, len(apiRsp.Items))
		for _, item := range apiRsp.Items {
			results = append(results, searchRepoItem{
				FullName:    item.FullName,
				URL:         item.HTMLURL,
				Description: item.Description,
				Stars:       item.Stars,
				Language:    item.Language,
			})
		}
		return searchResponse{
			Query:      req.Query,
			TotalCount: apiRsp.TotalCount,
			Results:    results,
			Summary:    fmt.Sprintf("Found %d repositories (total: %d)", len(results), apiRsp.TotalCount),
		}, nil
	}

	return function.NewFunctionTool(
		searchFunc,
		function.WithName("github_search"),
		function.WithDescription(fmt.Sprintf("Searches GitHub repositories using GitHub search syntax "+
			"(e.g. 'http client language:go', 'org:golang topic:tools'). Returns full name, URL, "+
			"description, star count and language per repository, sorted by stars. "+
			"Default limit: %d results.", cfg.maxResults)),
	)
}

// ===== File Content Tool =====

type getFileRequest struct {
	Owner string `json:"owner" jsonschema:"description=Repository owner, e.g. 'golang'"`
	Repo  string `json:"repo" jsonschema:"description=Repository name, e.g. 'go'"`
	Path  string `json:"path" jsonschema:"description=File path within the repository, e.g. 'README.md'"`
	Ref   string `json:"ref,omitempty" jsonschema:"description=Branch, tag or commit to read from (default: default branch)"`
}

type getFileResponse struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Contents string `json:"contents"`
	Message  string `json:"message"`
}

func createGetFileTool(githubClient *client) tool.CallableTool {
	getFileFunc := func(ctx context.Context, req getFileRequest) (getFileResponse, error) {
		rsp := getFileResponse{
			Owner: req.Owner,
			Repo:  req.Repo,
			Path:  req.Path,
		}
		if req.Owner == "" || req.Repo == "" || req.Path == "" {
			rsp.Message = "Error: owner, repo and path are all required"
			return rsp, fmt.Errorf("owner, repo and path are all required")
		}
		params := url.Values{}
		if req.Ref != "" {
			params.Set("ref", req.Ref)
		}
		apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s",
			url.PathEscape(req.Owner), url.PathEscape(req.Repo), req.Path)

		var apiRsp contentsResponse
		if err := githubClient.get(ctx, apiPath, params, &apiRsp); err != nil {
			rsp.Message = fmt.Sprintf("Error: %v", err)
			return rsp, err
		}
		contents := apiRsp.Content
		if apiRsp.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(
				strings.ReplaceAll(apiRsp.Content, "\n", ""))
			if err != nil {
				rsp.Message = fmt.Sprintf("Error: decoding file contents: %v", err)
				return rsp, fmt.Errorf("decoding file contents: %w", err)
			}
			contents = string(decoded)
		}
		rsp.SHA = apiRsp.SHA
		rsp.Size = apiRsp.Size
		rsp.Contents = contents
		rsp.Message = fmt.Sprintf("Successfully read %s/%s:%s", req.Owner, req.Repo, req.Path)
		return rsp, nil
	}

	return function.NewFunctionTool(
		getFileFunc,
		function.WithName("github_get_file"),
		function.WithDescription("Reads a file from a GitHub repository and returns its decoded "+
			"contents. Requires 'owner', 'repo' and 'path'. The optional 'ref' selects a branch, "+
			"tag or commit."),
	)
}

// ===== Repository Listing Tool =====

type listReposRequest struct {
	Owner string `json:"owner" jsonschema:"description=User or organization whose public repositories to list"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of repositories (default: 5)"`
}

type listReposResponse struct {
	Owner   string           `json:"owner"`
	Results []searchRepoItem `json:"results"`
	Summary string           `json:"summary"`
}

func createListReposTool(githubClient *client, cfg *config) tool.CallableTool {
	listFunc := func(ctx context.Context, req listReposRequest) (listReposResponse, error) {
		if strings.TrimSpace(req.Owner) == "" {
			return listReposResponse{
				Summary: "Error: owner cannot be empty",
			}, fmt.Errorf("owner cannot be empty")
		}
		limit := req.Limit
		if limit <= 0 || limit > cfg.maxResults {
			limit = cfg.maxResults
		}
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(limit))
		params.Set("sort", "updated")

		var items []repoItem
		apiPath := fmt.Sprintf("/users/%s/repos", url.PathEscape(req.Owner))
		if err := githubClient.get(ctx, apiPath, params, &items); err != nil {
			return listReposResponse{
				Owner:   req.Owner,
				Summary: fmt.Sprintf("Error: %v", err),
			}, err
		}
		results := make([]searchRepoItem, 0, len(items))
		for _, item := range items {
			results = append(results, searchRepoItem{
				FullName:    item.FullName,
				URL:         item.HTMLURL,
				Description: item.Description,
				Stars:       item.Stars,
				Language:    item.Language,
			})
		}
		return listReposResponse{
			Owner:   req.Owner,
			Results: results,
			Summary: fmt.Sprintf("Found %d repositories for %s", len(results), req.Owner),
		}, nil
	}

	return function.NewFunctionTool(
		listFunc,
		function.WithName("github_list_repos"),
		function.WithDescription(fmt.Sprintf("Lists the public repositories of a user or organization, "+
			"most recently updated first. Returns full name, URL, description, star count and "+
			"language per repository. Default limit: %d results.", cfg.maxResults)),
	)
}
