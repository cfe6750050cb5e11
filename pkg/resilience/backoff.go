// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides the backoff-governed polling loop that drives
// the agent, and timeout helpers for its requests.
package resilience

import (
	"time"
)

const (
	// DefaultInitialDelay is the first failure delay and the floor the delay
	// decays back to after successful iterations.
	DefaultInitialDelay = 50 * time.Millisecond

	// DefaultMaxDelay caps the failure delay.
	DefaultMaxDelay = 10 * time.Minute

	// DefaultMultiplier grows the delay after each consecutive failure.
	DefaultMultiplier = 2.0
)

// Backoff tracks the failure delay of a loop. It doubles on every
// consecutive failure and halves on every successful iteration, staying
// within [Initial, Max]. A Backoff is not safe for concurrent use.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	current time.Duration
}

// NewBackoff returns a backoff with the default delays.
func NewBackoff() *Backoff {
	return &Backoff{
		Initial:    DefaultInitialDelay,
		Max:        DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
	}
}

// Current returns the delay the next failure will wait.
func (b *Backoff) Current() time.Duration {
	b.init()
	return b.current
}

// Failure returns the delay to wait after a failed iteration and grows the
// delay for the next one.
func (b *Backoff) Failure() time.Duration {
	b.init()
	delay := b.current
	next := time.Duration(float64(b.current) * b.Multiplier)
	if next > b.Max || next < b.current {
		next = b.Max
	}
	b.current = next
	return delay
}

// Success shrinks the delay after a successful iteration.
func (b *Backoff) Success() {
	b.init()
	b.current /= 2
	if b.current < b.Initial {
		b.current = b.Initial
	}
}

// Reset returns the delay to Initial.
func (b *Backoff) Reset() {
	b.init()
	b.current = b.Initial
}

func (b *Backoff) init() {
	if b.Initial <= 0 {
		b.Initial = DefaultInitialDelay
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxDelay
	}
	if b.Multiplier <= 1 {
		b.Multiplier = DefaultMultiplier
	}
	if b.current == 0 {
		b.current = b.Initial
	}
}
