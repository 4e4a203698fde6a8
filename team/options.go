//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package team

import "time"

const (
	defaultMaxTurns       = 20
	defaultMarker         = "TERMINATE"
	defaultBackendRetries = 2
	defaultRetryBackoff   = 500 * time.Millisecond
)

type options struct {
	policy         TurnPolicy
	maxTurns       int
	marker         string
	backendRetries int
	retryBackoff   time.Duration
}

// Option configures a Coordinator.
type Option func(*options)

// WithPolicy sets the turn policy. The default cycles members in roster
// order.
func WithPolicy(p TurnPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithMaxTurns caps how many agent turns a task may take before it
// fails with TurnLimitExceeded.
func WithMaxTurns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithTerminationMarker sets the marker an agent includes in a message
// to complete the task. An empty marker disables marker termination, so
// tasks end only at the turn limit.
func WithTerminationMarker(marker string) Option {
	return func(o *options) {
		o.marker = marker
	}
}

// WithBackendRetries caps how many times an unavailable model backend
// is retried within one step before the task fails.
func WithBackendRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.backendRetries = n
		}
	}
}

// WithRetryBackoff sets the delay before the first backend retry. The
// delay doubles on each further retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

func defaultOptions() options {
	return options{
		policy:         NewRoundRobinPolicy(),
		maxTurns:       defaultMaxTurns,
		marker:         defaultMarker,
		backendRetries: defaultBackendRetries,
		retryBackoff:   defaultRetryBackoff,
	}
}
