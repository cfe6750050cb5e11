// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/schema"
)

var errBoom = stderrors.New("This is the error message.")

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Definition{
		Name: "plusTwoNumbers",
		Arguments: schema.Schema{
			{Name: "number1", Type: schema.TypeNumber, Required: true},
			{Name: "number2", Type: schema.TypeNumber, Required: true},
		},
		Implementation: registry.FunctionFunc(func(_ context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
			return args["number1"].(float64) + args["number2"].(float64), nil
		}),
	}))
	require.NoError(t, reg.Register(registry.Definition{
		Name: "whoami",
		Implementation: registry.FunctionFunc(func(ctx context.Context, _ map[string]any, ic core.InvocationContext) (any, error) {
			fromCtx, _ := core.InvocationFromContext(ctx)
			return []string{ic.String("userEmail"), fromCtx.String("userEmail")}, nil
		}),
	}))
	require.NoError(t, reg.Register(registry.Definition{
		Name: "alwaysFails",
		Implementation: registry.FunctionFunc(func(context.Context, map[string]any, core.InvocationContext) (any, error) {
			return nil, errBoom
		}),
	}))
	require.NoError(t, reg.Register(registry.Definition{
		Name:      "booleanFn",
		Arguments: schema.Schema{{Name: "booleanArg", Type: schema.TypeBoolean, Required: true}},
		Implementation: registry.FunctionFunc(func(_ context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
			return args["booleanArg"], nil
		}),
	}))
	return New(reg, Identity{Version: "0.0.1", AgentUUID: "agent-1"}, nil)
}

func TestDispatchSuccess(t *testing.T) {
	d := newDispatcher(t)

	res, err := d.Dispatch(context.Background(), "plusTwoNumbers",
		map[string]any{"number1": float64(2), "number2": "3", "ignored": true}, nil)
	require.NoError(t, err)

	assert.Equal(t, float64(5), res.Value)
	assert.Equal(t, map[string]any{"number1": float64(2), "number2": float64(3)}, res.Arguments)
}

func TestDispatchPassesInvocationContext(t *testing.T) {
	d := newDispatcher(t)
	ic := core.InvocationContext{"userEmail": "ada@example.com"}

	res, err := d.Dispatch(context.Background(), "whoami", map[string]any{}, ic)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com", "ada@example.com"}, res.Value)
}

func TestDispatchFunctionNotFound(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), "does not exist", map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Function "does not exist" not found on remote agent server.`)
	assert.Equal(t, errors.CodeFunctionNotFound, errors.CodeOf(err))
}

func TestDispatchInvalidArguments(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), "booleanFn", map[string]any{"booleanArg": "true1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArguments, errors.CodeOf(err))
	assert.Contains(t, err.Error(), `Argument "booleanArg" should be of type "boolean".`)
	assert.Equal(t, "booleanFn", errors.AsAgentError(err).Context["function"])
}

func TestDispatchRejectsNonMappingArguments(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), "plusTwoNumbers", []any{2, 3}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
}

func TestDispatchPropagatesFunctionError(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), "alwaysFails", map[string]any{}, nil)
	assert.Same(t, errBoom, err)
}

func TestDispatchTestConnection(t *testing.T) {
	d := newDispatcher(t)
	ic := core.InvocationContext{"userEmail": "ada@example.com"}

	res, err := d.Dispatch(context.Background(), TestConnectionFunction, nil, ic)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"success":   true,
		"version":   "0.0.1",
		"agentUuid": "agent-1",
		"context":   ic,
	}, res.Value)
	assert.Equal(t, map[string]any{}, res.Arguments)
}
