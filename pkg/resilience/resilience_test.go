// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingSleep records requested delays and cancels the loop after limit
// sleeps.
func recordingSleep(cancel context.CancelFunc, limit int, delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		if len(*delays) >= limit {
			cancel()
			return ctx.Err()
		}
		return nil
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff()
	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}
	for _, w := range want {
		assert.Equal(t, w, b.Failure())
	}

	for i := 0; i < 30; i++ {
		b.Failure()
	}
	assert.Equal(t, 10*time.Minute, b.Failure())
	assert.Equal(t, 10*time.Minute, b.Current())
}

func TestBackoffSuccessHalvesWithFloor(t *testing.T) {
	b := NewBackoff()
	b.Failure()
	b.Failure()
	b.Failure()
	assert.Equal(t, 400*time.Millisecond, b.Current())

	b.Success()
	assert.Equal(t, 200*time.Millisecond, b.Current())
	b.Success()
	b.Success()
	b.Success()
	assert.Equal(t, 50*time.Millisecond, b.Current())

	b.Failure()
	b.Reset()
	assert.Equal(t, 50*time.Millisecond, b.Current())
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, DefaultInitialDelay, b.Failure())
	assert.Equal(t, 2*DefaultInitialDelay, b.Current())
}

func TestLoopAlwaysFailingStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	failures := 0
	status, err := Loop(ctx, LoopConfig{
		Interval:  time.Second,
		Logger:    quiet,
		Sleep:     recordingSleep(cancel, 20, &delays),
		OnFailure: func(context.Context, error) { failures++ },
	}, func(context.Context) (core.Status, error) {
		return "", stderrors.New("orchestrator unreachable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, status)
	require.Len(t, delays, 20)
	assert.Equal(t, 20, failures)

	expected := 50 * time.Millisecond
	for i, d := range delays {
		assert.Equal(t, expected, d, "delay %d", i)
		expected *= 2
		if expected > 10*time.Minute {
			expected = 10 * time.Minute
		}
	}
	assert.Equal(t, 600000*time.Millisecond, delays[len(delays)-1])
}

func TestLoopContinueSleepsIntervalAndDecays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backoff := NewBackoff()
	var delays []time.Duration
	calls := 0
	status, err := Loop(ctx, LoopConfig{
		Interval: time.Second,
		Backoff:  backoff,
		Logger:   quiet,
		Sleep:    recordingSleep(cancel, 100, &delays),
	}, func(context.Context) (core.Status, error) {
		calls++
		switch {
		case calls <= 3:
			return "", stderrors.New("transient")
		case calls <= 5:
			return core.StatusContinue, nil
		default:
			return core.StatusDone, nil
		}
	})

	require.NoError(t, err)
	assert.Equal(t, core.StatusDone, status)
	assert.Equal(t, []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		time.Second,
		time.Second,
	}, delays)
	assert.Equal(t, 100*time.Millisecond, backoff.Current())
}

func TestLoopReturnsTerminalStatusImmediately(t *testing.T) {
	for _, want := range []core.Status{core.StatusDone, core.StatusStop} {
		slept := false
		status, err := Loop(context.Background(), LoopConfig{
			Logger: quiet,
			Sleep: func(context.Context, time.Duration) error {
				slept = true
				return nil
			},
		}, func(context.Context) (core.Status, error) {
			return want, nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, status)
		assert.False(t, slept)
	}
}

func TestLoopUnknownStatusIsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	_, err := Loop(ctx, LoopConfig{Logger: quiet, Sleep: recordingSleep(cancel, 1, &delays)},
		func(context.Context) (core.Status, error) { return "weird", nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, delays)
}

func TestLoopStopsWhenContextCancelledDuringStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Loop(ctx, LoopConfig{Logger: quiet}, func(ctx context.Context) (core.Status, error) {
		cancel()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{
		Duration: 10 * time.Millisecond,
		Message:  "Polling timeout after 10ms",
	}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.Equal(t, errors.CodeTimeout, errors.CodeOf(err))
	assert.True(t, errors.IsRecoverable(err))
	assert.Contains(t, err.Error(), "Polling timeout after 10ms")
}

func TestWithTimeoutPassThrough(t *testing.T) {
	require.NoError(t, WithTimeout(context.Background(), TimeoutConfig{Duration: time.Second},
		func(context.Context) error { return nil }))

	boom := stderrors.New("boom")
	assert.Same(t, boom, WithTimeout(context.Background(), TimeoutConfig{},
		func(context.Context) error { return boom }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, TimeoutConfig{Duration: time.Second}, func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, errors.CodeTimeout, errors.CodeOf(err))
}
