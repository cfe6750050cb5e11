// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for the agent.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for agent telemetry.
const (
	// Agent attributes
	AttrAgentUUID       = "rpcagent.agent.uuid"
	AttrAgentResourceID = "rpcagent.agent.resource_id"
	AttrAgentEnv        = "rpcagent.agent.environment"
	AttrAgentVersion    = "rpcagent.agent.version"

	// Catalog attributes
	AttrFunctionsCount = "rpcagent.functions.count"
	AttrFunctionsNames = "rpcagent.functions.names"

	// Query attributes
	AttrQueryID         = "rpcagent.query.id"
	AttrQueryMethod     = "rpcagent.query.method"
	AttrQueryStatus     = "rpcagent.query.status"
	AttrQueryDurationMs = "rpcagent.query.duration_ms"
	AttrErrorName       = "rpcagent.error.name"

	// Loop attributes
	AttrLoopPhase   = "rpcagent.loop.phase"
	AttrPollOutcome = "rpcagent.poll.outcome"
)

// AgentAttributes returns the identity attributes of an agent.
func AgentAttributes(agentUUID, resourceID, environment, version string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentUUID, agentUUID),
		attribute.String(AttrAgentResourceID, resourceID),
	}
	if environment != "" {
		attrs = append(attrs, attribute.String(AttrAgentEnv, environment))
	}
	if version != "" {
		attrs = append(attrs, attribute.String(AttrAgentVersion, version))
	}
	return attrs
}

// CatalogAttributes describes the registered functions.
func CatalogAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrFunctionsCount, len(names)),
	}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrFunctionsNames, names))
	}
	return attrs
}

// QueryAttributes identifies a query.
func QueryAttributes(queryID, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrQueryID, queryID),
		attribute.String(AttrQueryMethod, method),
	}
}

// QueryOutcomeAttributes describes how a query finished. errorName is
// omitted when empty.
func QueryOutcomeAttributes(status string, durationMs float64, errorName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrQueryStatus, status),
		attribute.Float64(AttrQueryDurationMs, durationMs),
	}
	if errorName != "" {
		attrs = append(attrs, attribute.String(AttrErrorName, errorName))
	}
	return attrs
}
