// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agent settings from defaults, YAML files, the
// environment and command-line overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: RPCAGENT_AGENT__API_TOKEN sets agent.api_token.
const EnvPrefix = "RPCAGENT_"

// MinPollingIntervalMs is the smallest accepted polling interval.
const MinPollingIntervalMs = 100

type Config struct {
	Agent     AgentConfig     `koanf:"agent"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	SQL       SQLConfig       `koanf:"sql"`
}

type AgentConfig struct {
	Host              string `koanf:"host"`
	APIToken          string `koanf:"api_token"`
	ResourceID        string `koanf:"resource_id"`
	EnvironmentName   string `koanf:"environment_name"`
	Version           string `koanf:"version"`
	AgentUUID         string `koanf:"agent_uuid"`
	PollingIntervalMs int    `koanf:"polling_interval_ms"`
	PollingTimeoutMs  int    `koanf:"polling_timeout_ms"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text, auto
}

type TelemetryConfig struct {
	Enabled            bool   `koanf:"enabled"`
	ServiceName        string `koanf:"service_name"`
	Exporter           string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

// SQLConfig exposes database tables as functions.
type SQLConfig struct {
	Driver     string           `koanf:"driver"`
	DSN        string           `koanf:"dsn"`
	ToolPrefix string           `koanf:"tool_prefix"`
	ReadOnly   bool             `koanf:"read_only"`
	Models     []SQLModelConfig `koanf:"models"`
}

// SQLModelConfig selects a table and the columns each function may use.
// Empty attribute lists mean every column.
type SQLModelConfig struct {
	Table            string   `koanf:"table"`
	Name             string   `koanf:"name"`
	ReadAttributes   []string `koanf:"read_attributes"`
	WriteAttributes  []string `koanf:"write_attributes"`
	FindByAttributes []string `koanf:"find_by_attributes"`
}

// Enabled reports whether a database is configured.
func (c SQLConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// Load reads configuration from path (optional), the environment and
// defaults.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile loads path and then the profile file next to it
// (config.yaml + "dev" reads config.dev.yaml when present).
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI loads configuration honoring --config, --profile and
// --set key=value arguments. Unrelated arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, err := parseCLI(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, opts.overrides)
}

func load(path, profile string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if profile != "" {
			profilePath := ProfileConfigPath(path, profile)
			if _, err := os.Stat(profilePath); err == nil {
				if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("load profile %s: %w", profilePath, err)
				}
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	_ = k.Set("agent.environment_name", "production")
	_ = k.Set("agent.version", "0.0.1")
	_ = k.Set("agent.polling_interval_ms", 1000)
	_ = k.Set("agent.polling_timeout_ms", 5000)

	_ = k.Set("log.level", "info")
	_ = k.Set("log.format", "auto")

	_ = k.Set("telemetry.enabled", false)
	_ = k.Set("telemetry.service_name", "rpcagent")
	_ = k.Set("telemetry.exporter", "stdout")

	_ = k.Set("sql.driver", "sqlite")
}

// envKey maps RPCAGENT_AGENT__API_TOKEN to agent.api_token.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) normalize() {
	c.Agent.Host = strings.TrimRight(strings.TrimSpace(c.Agent.Host), "/")
	if c.Agent.PollingIntervalMs < MinPollingIntervalMs {
		c.Agent.PollingIntervalMs = MinPollingIntervalMs
	}
}

// Validate checks the settings required to reach the orchestrator.
func (c *Config) Validate() error {
	var missing []string
	if c.Agent.Host == "" {
		missing = append(missing, "agent.host")
	}
	if c.Agent.APIToken == "" {
		missing = append(missing, "agent.api_token")
	}
	if c.Agent.ResourceID == "" {
		missing = append(missing, "agent.resource_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Agent.PollingTimeoutMs < 0 {
		return fmt.Errorf("agent.polling_timeout_ms must not be negative")
	}
	for i, m := range c.SQL.Models {
		if strings.TrimSpace(m.Table) == "" {
			return fmt.Errorf("sql.models[%d]: table is required", i)
		}
	}
	return nil
}

// ProfileConfigPath returns the profile variant of path:
// /etc/agent/config.yaml + "dev" → /etc/agent/config.dev.yaml.
func ProfileConfigPath(path, profile string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(dir, base+"."+profile+ext)
}

type cliOptions struct {
	path      string
	profile   string
	overrides map[string]any
}

func parseCLI(args []string) (cliOptions, error) {
	opts := cliOptions{overrides: map[string]any{}}
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--set", "-set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = value
		case "profile":
			opts.profile = value
		case "set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return opts, fmt.Errorf("invalid --set value %q, expected key=value", value)
			}
			opts.overrides[key] = parseValue(raw)
		}
	}
	return opts, nil
}

// parseValue decodes raw as JSON when possible so that numbers, booleans,
// lists and objects keep their type. Anything else is kept as text.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
