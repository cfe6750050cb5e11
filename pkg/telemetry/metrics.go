// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/rpcagent/pkg/errors"
)

// Poll outcomes recorded by AgentMetrics.RecordPoll.
const (
	PollQuery = "query"
	PollEmpty = "empty"
	PollError = "error"
)

// Loop phases recorded by AgentMetrics.RecordLoopFailure.
const (
	PhaseRegister = "register"
	PhaseFetch    = "fetch"
)

// AgentMetrics records query throughput, polling and loop health.
// A nil *AgentMetrics records nothing.
type AgentMetrics struct {
	queries       metric.Int64Counter
	polls         metric.Int64Counter
	loopFailures  metric.Int64Counter
	queryDuration metric.Float64Histogram
}

// NewAgentMetrics creates the agent instruments on provider, or on the
// global meter provider when provider is nil.
func NewAgentMetrics(provider metric.MeterProvider) (*AgentMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("rpcagent/agent")

	queries, err := meter.Int64Counter(
		"rpcagent.queries.total",
		metric.WithDescription("Queries executed by method and status"),
	)
	if err != nil {
		return nil, err
	}

	polls, err := meter.Int64Counter(
		"rpcagent.polls.total",
		metric.WithDescription("popQuery requests by outcome"),
	)
	if err != nil {
		return nil, err
	}

	loopFailures, err := meter.Int64Counter(
		"rpcagent.loop.failures",
		metric.WithDescription("Failed loop iterations by phase"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"rpcagent.query.duration",
		metric.WithDescription("Query execution time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		queries:       queries,
		polls:         polls,
		loopFailures:  loopFailures,
		queryDuration: queryDuration,
	}, nil
}

// RecordQuery counts a finished query and records its duration.
func (m *AgentMetrics) RecordQuery(ctx context.Context, method, status string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrQueryMethod, method),
		attribute.String(AttrQueryStatus, status),
	)
	m.queries.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, durationMs, attrs)
}

// RecordPoll counts a popQuery request by outcome.
func (m *AgentMetrics) RecordPoll(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPollOutcome, outcome)))
}

// RecordLoopFailure counts a failed loop iteration.
func (m *AgentMetrics) RecordLoopFailure(ctx context.Context, phase string, err error) {
	if m == nil {
		return
	}
	m.loopFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrLoopPhase, phase),
		attribute.String("error.code", string(errors.CodeOf(err))),
	))
}
