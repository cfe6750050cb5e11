// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jllopis/rpcagent/pkg/agent"
	"github.com/jllopis/rpcagent/pkg/config"
	"github.com/jllopis/rpcagent/pkg/connectors"
	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/telemetry"
)

type runFlags struct {
	Samples bool
}

func parseRunFlags(name string, args []string) (runFlags, error) {
	var opts runFlags
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	cmd.BoolVar(&opts.Samples, "samples", false, "register the demo functions")
	if err := cmd.Parse(args); err != nil {
		return opts, err
	}
	if cmd.NArg() > 0 {
		return opts, fmt.Errorf("unexpected args: %v", cmd.Args())
	}
	return opts, nil
}

func runAgent(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	opts, err := parseRunFlags("run", args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, telemetry.ResolveFormat(cfg.Log.Format, os.Stderr))

	// The identity is fixed here so that telemetry and registration agree.
	if cfg.Agent.AgentUUID == "" {
		cfg.Agent.AgentUUID = uuid.NewString()
	}

	var metrics *telemetry.AgentMetrics
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: agent.Version,
			Agent: telemetry.AgentIdentity{
				AgentUUID:   cfg.Agent.AgentUUID,
				ResourceID:  cfg.Agent.ResourceID,
				Environment: cfg.Agent.EnvironmentName,
				Version:     cfg.Agent.Version,
			},
			Exporter:           cfg.Telemetry.Exporter,
			OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
			OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("telemetry.shutdown.failed", slog.String("error", err.Error()))
			}
		}()
		if metrics, err = telemetry.NewAgentMetrics(nil); err != nil {
			return err
		}
	}

	if global.ConfigPath != "" {
		watcher, err := config.NewWatcher(global.ConfigPath, global.Profile, config.WithWatchLogger(logger))
		if err != nil {
			return err
		}
		watcher.OnChange(func(next *config.Config) {
			telemetry.SetLogLevel(next.Log.Level)
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	a, err := agent.New(agent.Options{
		Host:            cfg.Agent.Host,
		APIToken:        cfg.Agent.APIToken,
		ResourceID:      cfg.Agent.ResourceID,
		EnvironmentName: cfg.Agent.EnvironmentName,
		Version:         cfg.Agent.Version,
		AgentUUID:       cfg.Agent.AgentUUID,
		PollingInterval: time.Duration(cfg.Agent.PollingIntervalMs) * time.Millisecond,
		PollingTimeout:  time.Duration(cfg.Agent.PollingTimeoutMs) * time.Millisecond,
		Logger:          logger,
		Metrics:         metrics,
		Events:          eventLogger(logger),
	})
	if err != nil {
		return err
	}

	health := core.NewHealthCheckProvider()
	health.RegisterChecker("agent", a)

	closeDB, err := populateRegistry(ctx, a.Registry(), cfg, opts.Samples, health)
	if err != nil {
		return err
	}
	defer closeDB()

	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "rpcagent %s listening on %s (%d functions)\n", agent.Version, cfg.Agent.Host, a.Registry().Len())

	err = a.Listen(ctx)
	logHealth(context.WithoutCancel(ctx), logger, health)
	return err
}

// logHealth logs the final state of every component.
func logHealth(ctx context.Context, logger *slog.Logger, health *core.HealthCheckProvider) {
	results, overall := health.CheckAll(ctx)
	for _, r := range results {
		logger.InfoContext(ctx, "agent.health",
			slog.String("component", r.Component),
			slog.String("status", string(r.Status)),
			slog.String("message", r.Message),
		)
	}
	logger.InfoContext(ctx, "agent.health.overall", slog.String("status", string(overall)))
}

// populateRegistry registers the demo functions and the configured SQL
// models. The returned func closes the database, if any. health may be nil.
func populateRegistry(ctx context.Context, reg *registry.Registry, cfg *config.Config, samples bool, health *core.HealthCheckProvider) (func(), error) {
	if samples {
		for _, def := range sampleFunctions() {
			if err := reg.Register(def); err != nil {
				return nil, err
			}
		}
	}

	if !cfg.SQL.Enabled() {
		return func() {}, nil
	}

	db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.SQL.Driver, err)
	}

	tables := make([]string, 0, len(cfg.SQL.Models))
	for _, m := range cfg.SQL.Models {
		tables = append(tables, m.Table)
	}
	opts := []connectors.SQLOption{
		connectors.WithSQLTables(tables...),
		connectors.WithSQLToolPrefix(cfg.SQL.ToolPrefix),
	}
	if cfg.SQL.ReadOnly {
		opts = append(opts, connectors.WithSQLReadOnly())
	}

	conn, err := connectors.NewSQLConnector(ctx, db, cfg.SQL.Driver, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, m := range cfg.SQL.Models {
		if err := conn.RegisterModel(reg, connectors.ModelSpec{
			Table:            m.Table,
			Name:             m.Name,
			ReadAttributes:   m.ReadAttributes,
			WriteAttributes:  m.WriteAttributes,
			FindByAttributes: m.FindByAttributes,
		}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sql model %s: %w", m.Table, err)
		}
	}
	if health != nil {
		health.RegisterChecker("sql", conn)
	}
	return func() { conn.Close() }, nil
}

// eventLogger logs lifecycle events at debug level.
func eventLogger(logger *slog.Logger) core.EventEmitter {
	return core.EventEmitterFunc(func(ctx context.Context, e core.Event) {
		attrs := []any{slog.String("event", string(e.Type))}
		if e.QueryID != "" {
			attrs = append(attrs, slog.String("query_id", e.QueryID))
		}
		logger.DebugContext(ctx, "agent.event", attrs...)
	})
}
