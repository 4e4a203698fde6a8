//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go programming", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"Heading": "Go (programming language)",
			"AbstractText": "Go is a statically typed, compiled language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
			"RelatedTopics": [
				{"Text": "Golang - official site", "FirstURL": "https://go.dev"},
				{"Text": "", "FirstURL": "https://skipped.example"},
				{"Text": "Go modules", "FirstURL": "https://go.dev/ref/mod"}
			]
		}`)
	}))
	defer server.Close()

	searchTool := NewTool(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	assert.Equal(t, "duckduckgo_search", searchTool.Declaration().Name)

	result, err := searchTool.Call(context.Background(), []byte(`{"query":"go programming"}`))
	require.NoError(t, err)
	rsp, ok := result.(searchResponse)
	require.True(t, ok)
	assert.Equal(t, "Go is a statically typed, compiled language.", rsp.Abstract)
	require.Len(t, rsp.Results, 2)
	assert.Equal(t, "https://go.dev", rsp.Results[0].URL)
}

func TestSearchToolEmptyQuery(t *testing.T) {
	searchTool := NewTool()
	_, err := searchTool.Call(context.Background(), []byte(`{"query":"  "}`))
	assert.Error(t, err)
}

func TestSearchToolAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	searchTool := NewTool(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	_, err := searchTool.Call(context.Background(), []byte(`{"query":"anything"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSearchToolMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"RelatedTopics": [
				{"Text": "one", "FirstURL": "https://a.example"},
				{"Text": "two", "FirstURL": "https://b.example"},
				{"Text": "three", "FirstURL": "https://c.example"}
			]
		}`)
	}))
	defer server.Close()

	searchTool := NewTool(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxResults(2),
	)
	result, err := searchTool.Call(context.Background(), []byte(`{"query":"limited"}`))
	require.NoError(t, err)
	rsp := result.(searchResponse)
	assert.Len(t, rsp.Results, 2)
}
