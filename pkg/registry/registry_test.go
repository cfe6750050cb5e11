// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/schema"
)

func echo(value any) Function {
	return FunctionFunc(func(context.Context, map[string]any, core.InvocationContext) (any, error) {
		return value, nil
	})
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Definition{
		Name:           "hello",
		Arguments:      schema.Schema{{Name: "name", Type: schema.TypeString, Required: true}},
		Implementation: echo("hi"),
	}))

	def, ok := r.Lookup("hello")
	require.True(t, ok)
	out, err := def.Implementation.Call(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterReplaces(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Definition{Name: "f", Implementation: echo(1)}))
	require.NoError(t, r.Register(Definition{Name: "f", Implementation: echo(2)}))

	def, _ := r.Lookup("f")
	out, _ := def.Implementation.Call(context.Background(), nil, nil)
	assert.Equal(t, 2, out)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(Definition{Implementation: echo(1)}))
	assert.Error(t, r.Register(Definition{Name: "nil"}))
	assert.Error(t, r.Register(Definition{
		Name:           "badSchema",
		Arguments:      schema.Schema{{Name: "x", Type: "integer"}},
		Implementation: echo(1),
	}))
	assert.Zero(t, r.Len())
}

func TestSealRejectsRegistration(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Definition{Name: "before", Implementation: echo(1)}))
	r.Seal()

	assert.True(t, r.Sealed())
	assert.Error(t, r.Register(Definition{Name: "after", Implementation: echo(1)}))
	assert.Equal(t, []string{"before"}, r.Names())
}

func TestNamesSorted(t *testing.T) {
	r := New()
	for _, name := range []string{"b", "c", "a"} {
		require.NoError(t, r.Register(Definition{Name: name, Implementation: echo(name)}))
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}

func TestMetadataJSON(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Definition{
		Name: "plusTwoNumbers",
		Arguments: schema.Schema{
			{Name: "number1", Type: schema.TypeNumber, Required: true},
			{Name: "number2", Type: schema.TypeNumber, Required: true},
		},
		Implementation: echo(nil),
	}))
	require.NoError(t, r.Register(Definition{
		Name:           "restricted",
		Implementation: echo(nil),
		Permissions:    &Permissions{GroupNames: []string{"admin"}},
	}))

	data, err := json.Marshal(r.Metadata())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"plusTwoNumbers": {
			"arguments": {
				"number1": {"type": "number", "array": false, "required": true},
				"number2": {"type": "number", "array": false, "required": true}
			},
			"permissions": {}
		},
		"restricted": {
			"arguments": {},
			"permissions": {"groupNames": ["admin"]}
		}
	}`, string(data))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = r.Register(Definition{Name: "f", Implementation: echo(i)})
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		r.Lookup("f")
		r.Metadata()
	}
	<-done
	assert.Equal(t, 1, r.Len())
}
