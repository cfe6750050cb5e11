// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
agent:
  host: http://localhost:3000
  api_token: from-file
log:
  level: info
`)
	writeFile(t, dir, "config.local.yaml", `
agent:
  resource_id: local-resource
`)
	t.Setenv("RPCAGENT_AGENT__API_TOKEN", "from-env")

	cfg, err := LoadWithCLI([]string{
		"run",
		"--config", path,
		"--profile=local",
		"--set", "agent.api_token=from-cli",
		"--set=agent.polling_interval_ms=250",
		"--set", "telemetry.enabled=true",
		"--set", `sql.models=[{"table":"users","find_by_attributes":["email"]}]`,
		"--set", "log.format=json",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-cli", cfg.Agent.APIToken)
	assert.Equal(t, "local-resource", cfg.Agent.ResourceID)
	assert.Equal(t, 250, cfg.Agent.PollingIntervalMs)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	require.Len(t, cfg.SQL.Models, 1)
	assert.Equal(t, "users", cfg.SQL.Models[0].Table)
	assert.Equal(t, []string{"email"}, cfg.SQL.Models[0].FindByAttributes)
}

func TestLoadWithCLIEnvBeatsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "agent:\n  api_token: from-file\n")
	t.Setenv("RPCAGENT_AGENT__API_TOKEN", "from-env")

	cfg, err := LoadWithCLI([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agent.APIToken)
}

func TestParseCLIErrors(t *testing.T) {
	_, err := parseCLI([]string{"--config"})
	assert.Error(t, err)
	_, err = parseCLI([]string{"--set"})
	assert.Error(t, err)
	_, err = parseCLI([]string{"--set", "invalid"})
	assert.Error(t, err)
	_, err = parseCLI([]string{"--set", "=value"})
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(12), parseValue("12"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "plain text", parseValue("plain text"))
	assert.Equal(t, []any{"a"}, parseValue(`["a"]`))
	assert.Equal(t, "", parseValue(""))
}
