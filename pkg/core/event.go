// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"time"
)

// EventType identifies a lifecycle event emitted by the agent.
type EventType string

const (
	EventAgentRegistered EventType = "agent.registered"
	EventQueryStarted    EventType = "agent.query.started"
	EventQueryCompleted  EventType = "agent.query.completed"
	EventQueryFailed     EventType = "agent.query.failed"
	EventAgentStopped    EventType = "agent.stopped"
)

// Event captures a lifecycle event.
type Event struct {
	Type      EventType
	AgentUUID string
	QueryID   string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EventEmitterFunc adapts a function to EventEmitter.
type EventEmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EventEmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(eventType EventType, agentUUID, queryID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		AgentUUID: agentUUID,
		QueryID:   queryID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
