// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent drives the orchestrator protocol: it registers the function
// catalog once, then long-polls for queries, runs them and reports the
// outcome.
package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/dispatch"
	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/orchestrator"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/resilience"
	"github.com/jllopis/rpcagent/pkg/telemetry"
)

// Version is the agent package version reported to the orchestrator.
const Version = "0.0.1"

// PackageLanguage is the language tag reported with every query response.
const PackageLanguage = "go"

// Defaults applied by New.
const (
	DefaultEnvironment     = "production"
	DefaultVersion         = "0.0.1"
	DefaultPollingInterval = time.Second
	MinPollingInterval     = 100 * time.Millisecond
	DefaultPollingTimeout  = 5 * time.Second
)

// UserAgent is sent with every orchestrator request.
var UserAgent = fmt.Sprintf("RetoolRPC/%s (Go)", Version)

// ErrRejected is returned by Listen when the orchestrator refuses the
// agent's registration, polls or reports with a 4xx status.
var ErrRejected = stderrors.New("agent rejected by orchestrator")

// Options configures an Agent.
type Options struct {
	// Host is the orchestrator base URL.
	Host string
	// APIToken authenticates the agent.
	APIToken string
	// ResourceID identifies the resource this agent serves.
	ResourceID string
	// EnvironmentName defaults to "production".
	EnvironmentName string
	// Version is the catalog version; defaults to "0.0.1".
	Version string
	// AgentUUID defaults to a random UUID.
	AgentUUID string

	// PollingInterval is the pause between polls. Values below
	// MinPollingInterval are raised to it.
	PollingInterval time.Duration
	// PollingTimeout bounds each poll request.
	PollingTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.AgentMetrics
	Events  core.EventEmitter
	HTTP    *http.Client

	// Sleep replaces the real-time wait of the loops.
	Sleep resilience.SleepFunc
}

// Agent exposes the functions of its registry to the orchestrator.
type Agent struct {
	opts       Options
	registry   *registry.Registry
	client     *orchestrator.Client
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	metrics    *telemetry.AgentMetrics
	events     core.EventEmitter
	tracer     oteltrace.Tracer

	mu          sync.RWMutex
	versionHash string
	health      healthState
}

// New validates opts, applies defaults and creates an agent with an empty
// registry.
func New(opts Options) (*Agent, error) {
	var missing []string
	if strings.TrimSpace(opts.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(opts.APIToken) == "" {
		missing = append(missing, "api token")
	}
	if strings.TrimSpace(opts.ResourceID) == "" {
		missing = append(missing, "resource id")
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.CodeInternal, "agent options missing "+strings.Join(missing, ", "), nil)
	}

	if opts.EnvironmentName == "" {
		opts.EnvironmentName = DefaultEnvironment
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.AgentUUID == "" {
		opts.AgentUUID = uuid.NewString()
	}
	switch {
	case opts.PollingInterval <= 0:
		opts.PollingInterval = DefaultPollingInterval
	case opts.PollingInterval < MinPollingInterval:
		opts.PollingInterval = MinPollingInterval
	}
	if opts.PollingTimeout == 0 {
		opts.PollingTimeout = DefaultPollingTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = core.NoopEventEmitter{}
	}

	logger := opts.Logger.With(
		slog.String("agent_uuid", opts.AgentUUID),
		slog.String("resource_id", opts.ResourceID),
	)

	client := orchestrator.NewClient(opts.Host, opts.APIToken)
	client.UserAgent = UserAgent
	client.PollTimeout = opts.PollingTimeout
	if opts.HTTP != nil {
		client.HTTP = opts.HTTP
	}

	reg := registry.New()
	return &Agent{
		opts:     opts,
		registry: reg,
		client:   client,
		dispatcher: dispatch.New(reg, dispatch.Identity{
			Version:   opts.Version,
			AgentUUID: opts.AgentUUID,
		}, logger),
		logger:  logger,
		metrics: opts.Metrics,
		events:  opts.Events,
		tracer:  telemetry.Tracer(),
	}, nil
}

// Register adds a function to the catalog. It fails once Listen has started
// polling.
func (a *Agent) Register(def registry.Definition) error {
	return a.registry.Register(def)
}

// Registry returns the agent's function registry.
func (a *Agent) Registry() *registry.Registry { return a.registry }

// AgentUUID returns the agent identifier.
func (a *Agent) AgentUUID() string { return a.opts.AgentUUID }

// VersionHash returns the hash assigned at registration, or "" before it.
func (a *Agent) VersionHash() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.versionHash
}

// Listen registers the agent and then processes queries until the
// orchestrator rejects a request or ctx is cancelled. Cancellation is a
// clean shutdown and returns nil; a rejection returns ErrRejected.
func (a *Agent) Listen(ctx context.Context) error {
	a.logger.InfoContext(ctx, "agent.listen.start",
		slog.String("host", a.client.BaseURL),
		slog.String("environment", a.opts.EnvironmentName),
		slog.String("version", a.opts.Version),
		slog.Duration("polling_interval", a.opts.PollingInterval),
	)
	defer a.events.Emit(context.WithoutCancel(ctx), core.NewEvent(core.EventAgentStopped, a.opts.AgentUUID, "", nil))

	status, err := resilience.Loop(ctx, a.loopConfig(telemetry.PhaseRegister), a.RegisterAgent)
	if err != nil {
		return a.stopped(ctx, err)
	}
	if status == core.StatusStop {
		a.logger.WarnContext(ctx, "agent.listen.stop", slog.String("phase", telemetry.PhaseRegister))
		return ErrRejected
	}

	a.registry.Seal()

	if _, err := resilience.Loop(ctx, a.loopConfig(telemetry.PhaseFetch), a.FetchAndExecute); err != nil {
		return a.stopped(ctx, err)
	}
	a.logger.WarnContext(ctx, "agent.listen.stop", slog.String("phase", telemetry.PhaseFetch))
	return ErrRejected
}

func (a *Agent) stopped(ctx context.Context, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		a.logger.InfoContext(context.WithoutCancel(ctx), "agent.listen.shutdown")
		return nil
	}
	return err
}

func (a *Agent) loopConfig(phase string) resilience.LoopConfig {
	return resilience.LoopConfig{
		Name:     phase,
		Interval: a.opts.PollingInterval,
		Logger:   a.logger,
		Sleep:    a.opts.Sleep,
		OnFailure: func(ctx context.Context, err error) {
			a.recordFailure(err)
			a.metrics.RecordLoopFailure(ctx, phase, err)
		},
	}
}

// RegisterAgent publishes the catalog. It returns StatusDone on success and
// StatusStop when the orchestrator rejects the agent. Other failures are
// returned as errors for the loop to retry.
func (a *Agent) RegisterAgent(ctx context.Context) (core.Status, error) {
	ctx, span := a.tracer.Start(ctx, "rpcagent.register")
	defer span.End()

	names := a.registry.Names()
	span.SetAttributes(telemetry.AgentAttributes(a.opts.AgentUUID, a.opts.ResourceID, a.opts.EnvironmentName, a.opts.Version)...)
	span.SetAttributes(telemetry.CatalogAttributes(names)...)

	resp, err := a.client.RegisterAgent(ctx, orchestrator.RegisterAgentRequest{
		ResourceID:      a.opts.ResourceID,
		EnvironmentName: a.opts.EnvironmentName,
		Version:         a.opts.Version,
		AgentUUID:       a.opts.AgentUUID,
		Operations:      a.registry.Metadata(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.IsClientError(err) {
			a.logger.ErrorContext(ctx, "agent.register.rejected", slog.Any("error", err))
			a.recordRejected()
			return core.StatusStop, nil
		}
		return "", err
	}

	a.mu.Lock()
	a.versionHash = resp.VersionHash
	a.health.registered = true
	a.health.failures = 0
	a.health.lastError = ""
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "agent.register.ok",
		slog.String("version_hash", resp.VersionHash),
		slog.Int("functions", len(names)),
	)
	a.events.Emit(ctx, core.NewEvent(core.EventAgentRegistered, a.opts.AgentUUID, "", map[string]any{
		"versionHash": resp.VersionHash,
		"functions":   names,
	}))
	return core.StatusDone, nil
}

// FetchAndExecute polls for one query, runs it and reports the outcome. It
// returns StatusContinue unless the orchestrator rejects a request, in which
// case it returns StatusStop. Query failures are reported, never returned.
func (a *Agent) FetchAndExecute(ctx context.Context) (core.Status, error) {
	query, err := a.client.PopQuery(ctx, orchestrator.PopQueryRequest{
		ResourceID:      a.opts.ResourceID,
		EnvironmentName: a.opts.EnvironmentName,
		AgentUUID:       a.opts.AgentUUID,
		VersionHash:     a.VersionHash(),
	})
	if err != nil {
		a.metrics.RecordPoll(ctx, telemetry.PollError)
		if errors.IsClientError(err) {
			a.logger.ErrorContext(ctx, "agent.poll.rejected", slog.Any("error", err))
			a.recordRejected()
			return core.StatusStop, nil
		}
		return "", err
	}
	a.recordPoll()
	if query == nil {
		a.metrics.RecordPoll(ctx, telemetry.PollEmpty)
		a.recordSuccess()
		return core.StatusContinue, nil
	}
	a.metrics.RecordPoll(ctx, telemetry.PollQuery)

	response := a.execute(ctx, query)

	if err := a.client.PostQueryResponse(ctx, response); err != nil {
		if errors.IsClientError(err) {
			a.logger.ErrorContext(ctx, "agent.query.report.rejected",
				slog.String("query_id", query.QueryUUID),
				slog.Any("error", err),
			)
			a.recordRejected()
			return core.StatusStop, nil
		}
		return "", err
	}
	a.logger.DebugContext(ctx, "agent.query.report.ok", slog.String("query_id", query.QueryUUID))
	a.recordSuccess()
	return core.StatusContinue, nil
}

// execute runs query and builds the response to post.
func (a *Agent) execute(ctx context.Context, query *orchestrator.PendingQuery) orchestrator.PostQueryResponseRequest {
	method := query.QueryInfo.Method
	ctx = core.WithQueryID(ctx, query.QueryUUID)
	ctx, span := a.tracer.Start(ctx, "rpcagent.query",
		oteltrace.WithAttributes(telemetry.QueryAttributes(query.QueryUUID, method)...),
	)
	defer span.End()

	a.logger.DebugContext(ctx, "agent.query.execute",
		slog.String("query_id", query.QueryUUID),
		slog.String("method", method),
		slog.Any("parameters", query.QueryInfo.Parameters),
		slog.Any("context", query.QueryInfo.Context),
	)
	a.events.Emit(ctx, core.NewEvent(core.EventQueryStarted, a.opts.AgentUUID, query.QueryUUID, map[string]any{
		"method": method,
	}))

	received := time.Now()
	// A running function is never interrupted by agent shutdown.
	result, failure := a.run(context.WithoutCancel(ctx), method, query.QueryInfo.Parameters, query.QueryInfo.Context)
	finished := time.Now()
	durationMs := float64(finished.Sub(received).Microseconds()) / 1000

	response := orchestrator.PostQueryResponseRequest{
		ResourceID:      a.opts.ResourceID,
		EnvironmentName: a.opts.EnvironmentName,
		VersionHash:     a.VersionHash(),
		AgentUUID:       a.opts.AgentUUID,
		QueryUUID:       query.QueryUUID,
		Metadata: orchestrator.QueryMetadata{
			PackageLanguage:      PackageLanguage,
			PackageVersion:       Version,
			AgentReceivedQueryAt: timestamp(received),
			AgentFinishedQueryAt: timestamp(finished),
		},
	}

	if failure != nil {
		response.Status = orchestrator.QueryStatusError
		response.Error = failure
		span.SetStatus(codes.Error, failure.Message)
		span.SetAttributes(telemetry.QueryOutcomeAttributes(string(response.Status), durationMs, failure.Name)...)
		a.logger.WarnContext(ctx, "agent.query.failed",
			slog.String("query_id", query.QueryUUID),
			slog.String("method", method),
			slog.String("error_name", failure.Name),
			slog.String("error", failure.Message),
		)
		a.events.Emit(ctx, core.NewEvent(core.EventQueryFailed, a.opts.AgentUUID, query.QueryUUID, map[string]any{
			"method": method,
			"error":  failure.Name,
		}))
	} else {
		response.Status = orchestrator.QueryStatusSuccess
		response.Data = result.Value
		response.Metadata.Parameters = result.Arguments
		span.SetAttributes(telemetry.QueryOutcomeAttributes(string(response.Status), durationMs, "")...)
		a.logger.InfoContext(ctx, "agent.query.completed",
			slog.String("query_id", query.QueryUUID),
			slog.String("method", method),
			slog.Float64("duration_ms", durationMs),
		)
		a.events.Emit(ctx, core.NewEvent(core.EventQueryCompleted, a.opts.AgentUUID, query.QueryUUID, map[string]any{
			"method": method,
		}))
	}
	span.SetAttributes(attribute.String(telemetry.AttrAgentUUID, a.opts.AgentUUID))
	a.metrics.RecordQuery(ctx, method, string(response.Status), durationMs)
	return response
}

// run dispatches a call, converting both returned errors and panics into
// normalized error records.
func (a *Agent) run(ctx context.Context, method string, params any, ic core.InvocationContext) (result dispatch.Result, failure *errors.NormalizedError) {
	defer func() {
		if r := recover(); r != nil {
			normalized := errors.NormalizePanic(r, debug.Stack())
			a.logger.ErrorContext(ctx, "agent.query.panic",
				slog.String("method", method),
				slog.String("panic", normalized.Message),
			)
			result, failure = dispatch.Result{}, &normalized
		}
	}()

	result, err := a.dispatcher.Dispatch(ctx, method, params, ic)
	if err != nil {
		normalized := errors.Normalize(err)
		return dispatch.Result{}, &normalized
	}
	return result, nil
}

// ExecuteFunction runs a registered function directly, outside the polling
// loop. It returns the function result and the coerced arguments.
func (a *Agent) ExecuteFunction(ctx context.Context, method string, params any, ic core.InvocationContext) (any, map[string]any, error) {
	result, err := a.dispatcher.Dispatch(ctx, method, params, ic)
	if err != nil {
		return nil, nil, err
	}
	return result.Value, result.Arguments, nil
}

// timestamp formats t as an ISO 8601 UTC instant with millisecond precision.
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
