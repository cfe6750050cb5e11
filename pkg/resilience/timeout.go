// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/rpcagent/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables
	// the timeout.
	Duration time.Duration

	// Message is reported when the deadline is exceeded.
	Message string
}

// WithTimeout runs fn with a context bounded by config.Duration. fn must
// honor its context. When the bound expires, a recoverable errors.CodeTimeout
// error is returned; cancellation of the parent context is returned as is.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	err := fn(tctx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
		msg := config.Message
		if msg == "" {
			msg = "operation exceeded timeout"
		}
		return errors.New(errors.CodeTimeout, msg, err).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	}
	return err
}
