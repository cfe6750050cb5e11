// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test-service", ServiceVersion: "0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitRejectsBadExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: ExporterOTLP})
	assert.ErrorContains(t, err, "otlp endpoint is required")

	_, err = Init(context.Background(), Config{Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown telemetry exporter")
}

func TestNewResourceCarriesAgentIdentity(t *testing.T) {
	res := NewResource(Config{
		ServiceVersion: "0.0.1",
		Agent: AgentIdentity{
			AgentUUID:   "agent-1",
			ResourceID:  "resource-1",
			Environment: "staging",
			Version:     "2.5.0",
		},
	})

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "rpcagent", got["service.name"])
	assert.Equal(t, "0.0.1", got["service.version"])
	assert.Equal(t, "agent-1", got["service.instance.id"])
	assert.Equal(t, "agent-1", got[AttrAgentUUID])
	assert.Equal(t, "resource-1", got[AttrAgentResourceID])
	assert.Equal(t, "staging", got[AttrAgentEnv])
	assert.Equal(t, "2.5.0", got[AttrAgentVersion])

	bare := NewResource(Config{ServiceName: "custom"})
	assert.Len(t, bare.Attributes(), 1)
}

func TestAttributes(t *testing.T) {
	attrs := AgentAttributes("uuid-1", "res", "", "")
	assert.Len(t, attrs, 2)

	attrs = AgentAttributes("uuid-1", "res", "production", "0.0.1")
	assert.Len(t, attrs, 4)

	assert.Len(t, CatalogAttributes(nil), 1)
	assert.Len(t, CatalogAttributes([]string{"a", "b"}), 2)

	assert.Len(t, QueryOutcomeAttributes("success", 1.5, ""), 2)
	assert.Len(t, QueryOutcomeAttributes("error", 1.5, "FunctionNotFoundError"), 3)
}
