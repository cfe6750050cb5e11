// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core provides the shared vocabulary of the agent: loop statuses,
// invocation context, and lifecycle events.
package core

// Status is the outcome of one iteration of a polling loop.
type Status string

const (
	// StatusContinue schedules another iteration.
	StatusContinue Status = "continue"

	// StatusDone ends the loop successfully.
	StatusDone Status = "done"

	// StatusStop ends the loop because the orchestrator rejected the agent.
	StatusStop Status = "stop"
)

// Terminal reports whether s ends a loop.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusStop
}
