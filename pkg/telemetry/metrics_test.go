// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jllopis/rpcagent/pkg/errors"
)

func newTestMetrics(t *testing.T) (*AgentMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewAgentMetrics(provider)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordQuery(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordQuery(ctx, "plusTwoNumbers", "success", 12)
	m.RecordQuery(ctx, "plusTwoNumbers", "success", 8)
	m.RecordQuery(ctx, "alwaysFails", "error", 3)

	got := collect(t, reader)
	queries := got["rpcagent.queries.total"]
	assert.Equal(t, int64(2), sumFor(t, queries, AttrQueryStatus, "success"))
	assert.Equal(t, int64(1), sumFor(t, queries, AttrQueryMethod, "alwaysFails"))

	hist, ok := got["rpcagent.query.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, "ms", got["rpcagent.query.duration"].Unit)
}

func TestRecordPollAndLoopFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPoll(ctx, PollEmpty)
	m.RecordPoll(ctx, PollEmpty)
	m.RecordPoll(ctx, PollQuery)
	m.RecordLoopFailure(ctx, PhaseFetch, errors.New(errors.CodeServer, "bad gateway", nil))
	m.RecordLoopFailure(ctx, PhaseRegister, errors.New(errors.CodeTransport, "refused", nil))

	got := collect(t, reader)
	polls := got["rpcagent.polls.total"]
	assert.Equal(t, int64(2), sumFor(t, polls, AttrPollOutcome, PollEmpty))
	assert.Equal(t, int64(1), sumFor(t, polls, AttrPollOutcome, PollQuery))

	failures := got["rpcagent.loop.failures"]
	assert.Equal(t, int64(1), sumFor(t, failures, AttrLoopPhase, PhaseFetch))
	assert.Equal(t, int64(1), sumFor(t, failures, "error.code", string(errors.CodeTransport)))
}

func TestNilAgentMetrics(t *testing.T) {
	var m *AgentMetrics
	ctx := context.Background()
	m.RecordQuery(ctx, "f", "success", 1)
	m.RecordPoll(ctx, PollError)
	m.RecordLoopFailure(ctx, PhaseFetch, nil)
}

func TestNewAgentMetricsGlobalProvider(t *testing.T) {
	m, err := NewAgentMetrics(nil)
	require.NoError(t, err)
	m.RecordPoll(context.Background(), PollEmpty)
}
