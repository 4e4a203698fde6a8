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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// client is a minimal GitHub REST API v3 client.
type client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

func newClient(baseURL, token, userAgent string, httpClient *http.Client) *client {
	return &client{
		baseURL:    baseURL,
		token:      token,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// get performs an authenticated GET against the API and decodes the JSON
// response into out.
func (c *client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if rsp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub API returned status %d: %s", rsp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// repoItem is a repository entry in search and list responses.
type repoItem struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language"`
}

// searchReposResponse is the payload of GET /search/repositories.
type searchReposResponse struct {
	TotalCount int        `json:"total_count"`
	Items      []repoItem `json:"items"`
}

// contentsResponse is the payload of GET /repos/{owner}/{repo}/contents/{path}.
type contentsResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}
