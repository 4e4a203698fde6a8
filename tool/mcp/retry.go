//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-crew-go/log"
)

// IsRetryableError reports whether an error looks transient. Matching is
// deliberately precise to avoid retrying permanent failures.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Network connection errors.
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection timeout") ||
		strings.Contains(errStr, "connection lost") ||
		strings.Contains(errStr, "connection aborted") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "read timeout") ||
		strings.Contains(errStr, "write timeout") ||
		strings.Contains(errStr, "dial timeout") ||
		errStr == "eof" ||
		strings.HasSuffix(errStr, ": eof") {
		return true
	}

	if isHTTPStatusRetryable(errStr) {
		return true
	}

	// Unknown errors default to non-retryable to avoid retry loops.
	return false
}

// isHTTPStatusRetryable checks if an error contains a retryable HTTP status
// code. Patterns are anchored so that e.g. "port 5001" does not match "501".
func isHTTPStatusRetryable(errStr string) bool {
	// Retryable status codes: 408, 409, 429, 5xx.
	retryableCodes := []string{
		"408", "409", "429",
		"500", "501", "502", "503", "504", "505", "506", "507", "508", "509", "510", "511",
	}

	for _, code := range retryableCodes {
		if strings.Contains(errStr, "http "+code) ||
			strings.Contains(errStr, "status "+code) ||
			strings.Contains(errStr, "status: "+code) ||
			strings.Contains(errStr, "code "+code) ||
			strings.Contains(errStr, "code: "+code) ||
			strings.Contains(errStr, code+" ") {
			return true
		}
	}

	return false
}

// executeWithRetry executes an operation with exponential backoff retry
// logic per the RetryConfig.
func executeWithRetry(
	ctx context.Context,
	retryConfig *RetryConfig,
	operation func() (any, error),
	operationName string,
) (any, error) {
	if retryConfig == nil || retryConfig.MaxRetries <= 0 {
		return operation()
	}

	var lastErr error
	backoff := retryConfig.InitialBackoff

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			if attempt > 0 {
				log.Debugf("Operation %s succeeded after %d attempts", operationName, attempt+1)
			}
			return result, nil
		}

		if !IsRetryableError(err) {
			log.Debugf("Operation %s hit non-retryable error on attempt %d: %v",
				operationName, attempt+1, err)
			return nil, err
		}

		lastErr = err

		if attempt >= retryConfig.MaxRetries {
			break
		}

		log.Debugf("Operation %s hit retryable error on attempt %d/%d, backing off %v: %v",
			operationName, attempt+1, retryConfig.MaxRetries+1, backoff, err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation cancelled during retry backoff: %w", ctx.Err())
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * retryConfig.BackoffFactor)
			if backoff > retryConfig.MaxBackoff {
				backoff = retryConfig.MaxBackoff
			}
		}
	}

	log.Errorf("Operation %s exhausted all %d attempts: %v",
		operationName, retryConfig.MaxRetries+1, lastErr)

	// Return the original error without wrapping to keep error chains flat.
	return nil, lastErr
}
