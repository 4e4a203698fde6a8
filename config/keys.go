//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted for provider credentials.
const (
	//nolint:gosec
	EnvGroqAPIKey = "GROQ_API_KEY"
	//nolint:gosec
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	//nolint:gosec
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	//nolint:gosec
	EnvGitHubToken = "GITHUB_TOKEN"
)

// APIKey returns the value of the first environment variable among names
// that is set to a non-empty value. The error names every candidate so a
// missing key is actionable.
func APIKey(names ...string) (string, error) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no API key found, set one of: %s", strings.Join(names, ", "))
}
