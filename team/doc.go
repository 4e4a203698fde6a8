//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package team runs multiple agent runtimes against one shared task
// record.
//
// The core idea is simple:
//   - A Team is an immutable, ordered roster of agent runtimes.
//   - A TurnPolicy picks the next speaker purely from the stored record,
//     so a resumed task reaches the same decision as an uninterrupted
//     run.
//   - The Coordinator loops speaker steps, dispatches tool calls through
//     the gateway, appends every exchange to the session store, and
//     reports a terminal Outcome.
//
// This package focuses on durable, replayable coordination rather than a
// large surface area.
package team
