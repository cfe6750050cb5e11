// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch resolves a method name against the registry, coerces the
// raw arguments, and invokes the function.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/schema"
)

// TestConnectionFunction is the built-in self-test method. It is always
// available and cannot be shadowed by a registered function.
const TestConnectionFunction = "__testConnection__"

// Identity describes the agent answering a self-test.
type Identity struct {
	Version   string
	AgentUUID string
}

// Result is the outcome of a successful dispatch.
type Result struct {
	// Value is what the function returned.
	Value any
	// Arguments are the coerced arguments the function was called with.
	Arguments map[string]any
}

// Dispatcher routes calls to registered functions.
type Dispatcher struct {
	registry *registry.Registry
	identity Identity
	logger   *slog.Logger
}

// New creates a dispatcher over reg.
func New(reg *registry.Registry, identity Identity, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: reg, identity: identity, logger: logger}
}

// Dispatch runs the function registered as name with raw arguments. It blocks
// until the function returns. Failures of the function itself are returned
// unmodified; lookup and validation failures are *errors.AgentError values.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw any, ic core.InvocationContext) (Result, error) {
	if name == TestConnectionFunction {
		return Result{Value: d.testConnection(ic), Arguments: map[string]any{}}, nil
	}

	def, ok := d.registry.Lookup(name)
	if !ok {
		return Result{}, errors.FunctionNotFound(name)
	}

	args, err := schema.Parse(raw, def.Arguments)
	if err != nil {
		if ae := errors.AsAgentError(err); ae != nil {
			ae.WithContext("function", name)
		}
		return Result{}, err
	}

	d.logger.DebugContext(ctx, "dispatch.invoke",
		slog.String("function", name),
		slog.Any("arguments", args),
	)

	ctx = core.WithInvocation(ctx, ic)
	value, err := def.Implementation.Call(ctx, args, ic)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: value, Arguments: args}, nil
}

func (d *Dispatcher) testConnection(ic core.InvocationContext) map[string]any {
	return map[string]any{
		"success":   true,
		"version":   d.identity.Version,
		"agentUuid": d.identity.AgentUUID,
		"context":   ic,
	}
}
