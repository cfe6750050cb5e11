// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusContinue.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusStop.Terminal())
}

func TestQueryID(t *testing.T) {
	ctx := WithQueryID(context.Background(), "q-1")
	got, ok := QueryID(ctx)
	require.True(t, ok)
	assert.Equal(t, "q-1", got)

	_, ok = QueryID(context.Background())
	assert.False(t, ok)
}

func TestInvocationContext(t *testing.T) {
	ic := InvocationContext{"userEmail": "ada@example.com", "groups": []any{"admin"}}
	ctx := WithInvocation(context.Background(), ic)

	got, ok := InvocationFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", got.String("userEmail"))
	assert.Empty(t, got.String("groups"))

	_, ok = InvocationFromContext(context.Background())
	assert.False(t, ok)
}

func TestEventEmitterFunc(t *testing.T) {
	var seen []EventType
	emitter := EventEmitterFunc(func(_ context.Context, e Event) {
		seen = append(seen, e.Type)
	})
	emitter.Emit(context.Background(), NewEvent(EventQueryStarted, "agent-1", "q-1", nil))
	NoopEventEmitter{}.Emit(context.Background(), NewEvent(EventAgentStopped, "agent-1", "", nil))

	assert.Equal(t, []EventType{EventQueryStarted}, seen)
}
