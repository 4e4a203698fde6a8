//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package duckduckgo provides a web search tool backed by the DuckDuckGo
// instant answer API. The API requires no key.
package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/tool"
	"trpc.group/trpc-go/trpc-crew-go/tool/function"
)

const (
	defaultBaseURL    = "https://api.duckduckgo.com"
	defaultUserAgent  = "trpc-crew-go-duckduckgo/1.0"
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 5
)

// config holds the configuration for the search tool.
type config struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	maxResults int
}

// Option is a functional option for configuring the search tool.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// WithMaxResults sets the maximum number of related results returned.
func WithMaxResults(maxResults int) Option {
	return func(c *config) {
		c.maxResults = maxResults
	}
}

// searchRequest represents the input for the web search operation.
type searchRequest struct {
	Query string `json:"query" jsonschema:"description=The search query"`
}

// searchResponse represents the output from the web search operation.
type searchResponse struct {
	Query    string       `json:"query"`
	Abstract string       `json:"abstract,omitempty"`
	Source   string       `json:"source,omitempty"`
	Results  []resultItem `json:"results"`
	Summary  string       `json:"summary"`
}

type resultItem struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// apiResponse mirrors the instant answer API payload.
type apiResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// NewTool creates a web search tool with the given options.
func NewTool(opts ...Option) tool.CallableTool {
	cfg := &config{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return function.NewFunctionTool(
		cfg.search,
		function.WithName("duckduckgo_search"),
		function.WithDescription("Searches the web via the DuckDuckGo instant answer API. Returns a "+
			"topic abstract when available plus related results with text and URL. Best for quick "+
			"factual lookups. No API key required."),
	)
}

// search performs the web search operation.
func (c *config) search(ctx context.Context, req searchRequest) (searchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return searchResponse{
			Summary: "Error: query cannot be empty",
		}, fmt.Errorf("query cannot be empty")
	}
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("no_redirect", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return searchResponse{Query: req.Query}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	httpRsp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return searchResponse{
			Query:   req.Query,
			Summary: fmt.Sprintf("Error: %v", err),
		}, fmt.Errorf("searching '%s': %w", req.Query, err)
	}
	defer httpRsp.Body.Close()
	body, err := io.ReadAll(httpRsp.Body)
	if err != nil {
		return searchResponse{Query: req.Query}, fmt.Errorf("reading response body: %w", err)
	}
	if httpRsp.StatusCode != http.StatusOK {
		return searchResponse{
			Query:   req.Query,
			Summary: fmt.Sprintf("Error: search API returned status %d", httpRsp.StatusCode),
		}, fmt.Errorf("search API returned status %d", httpRsp.StatusCode)
	}
	var apiRsp apiResponse
	if err := json.Unmarshal(body, &apiRsp); err != nil {
		return searchResponse{Query: req.Query}, fmt.Errorf("decoding response: %w", err)
	}

	rsp := searchResponse{
		Query:    req.Query,
		Abstract: apiRsp.AbstractText,
		Source:   apiRsp.AbstractURL,
	}
	for _, topic := range apiRsp.RelatedTopics {
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		rsp.Results = append(rsp.Results, resultItem{Text: topic.Text, URL: topic.FirstURL})
		if len(rsp.Results) >= c.maxResults {
			break
		}
	}
	rsp.Summary = fmt.Sprintf("Found %d results", len(rsp.Results))
	if apiRsp.AbstractText != "" {
		rsp.Summary = fmt.Sprintf("Found abstract and %d results", len(rsp.Results))
	}
	return rsp, nil
}
