// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
)

// StepFunc is one iteration of a loop.
type StepFunc func(ctx context.Context) (core.Status, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// LoopConfig controls Loop.
type LoopConfig struct {
	// Name identifies the loop in logs.
	Name string

	// Interval is the pause after an iteration that returns StatusContinue.
	Interval time.Duration

	// Backoff governs the pause after a failed iteration. A fresh default
	// backoff is used when nil.
	Backoff *Backoff

	// Logger receives failure and timing logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Sleep replaces the real-time wait. Defaults to Sleep.
	Sleep SleepFunc

	// OnFailure is called for every failed iteration before backing off.
	OnFailure func(ctx context.Context, err error)
}

// Loop calls step until it returns StatusDone or StatusStop.
//
// A failed iteration is logged and followed by the backoff's failure delay;
// the interval is not applied. A StatusContinue iteration is followed by the
// interval, after which the failure delay is halved. Loop returns early with
// the context error when ctx is done.
func Loop(ctx context.Context, cfg LoopConfig, step StepFunc) (core.Status, error) {
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NewBackoff()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger = logger.With(slog.String("loop", cfg.Name))

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		start := time.Now()
		status, err := step(ctx)
		if err == nil && !validStatus(status) {
			err = fmt.Errorf("unknown loop status %q", status)
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			delay := backoff.Failure()
			attrs := []any{
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			}
			if ae := errors.AsAgentError(err); ae != nil {
				attrs = append(attrs,
					slog.String("error.code", string(ae.Code)),
					slog.String("recoverable", ae.RecoverableString()),
				)
			}
			logger.ErrorContext(ctx, "resilience.loop.failure", attrs...)
			if cfg.OnFailure != nil {
				cfg.OnFailure(ctx, err)
			}
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
			continue
		}

		if status.Terminal() {
			return status, nil
		}

		if err := sleep(ctx, cfg.Interval); err != nil {
			return "", err
		}
		backoff.Success()

		logger.DebugContext(ctx, "resilience.loop.iteration",
			slog.Duration("loop_time", time.Since(start)),
			slog.Duration("failure_delay", backoff.Current()),
			slog.Duration("interval", cfg.Interval),
		)
	}
}

// Sleep waits for d or until ctx is done, returning the context error in
// the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validStatus(s core.Status) bool {
	switch s {
	case core.StatusContinue, core.StatusDone, core.StatusStop:
		return true
	}
	return false
}
