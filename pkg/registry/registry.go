// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the functions an agent exposes to the orchestrator.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/schema"
)

// Function is a callable exposed to the orchestrator. args holds the coerced
// arguments keyed by declared name.
type Function interface {
	Call(ctx context.Context, args map[string]any, ic core.InvocationContext) (any, error)
}

// FunctionFunc adapts an ordinary function to Function.
type FunctionFunc func(ctx context.Context, args map[string]any, ic core.InvocationContext) (any, error)

// Call implements Function.
func (f FunctionFunc) Call(ctx context.Context, args map[string]any, ic core.InvocationContext) (any, error) {
	return f(ctx, args, ic)
}

// Permissions restricts who may invoke a function.
type Permissions struct {
	GroupNames []string `json:"groupNames,omitempty" yaml:"groupNames,omitempty"`
	UserEmails []string `json:"userEmails,omitempty" yaml:"userEmails,omitempty"`
}

// Definition is a registered function.
type Definition struct {
	Name           string
	Arguments      schema.Schema
	Implementation Function
	Permissions    *Permissions
}

// Metadata is the published description of one function.
type Metadata struct {
	Arguments   schema.Schema `json:"arguments" yaml:"arguments"`
	Permissions Permissions   `json:"permissions" yaml:"permissions"`
}

// Registry maps function names to definitions. It is safe for concurrent use.
// Once sealed, new registrations are rejected.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	sealed bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def, replacing any definition with the same name.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("function name is required")
	}
	if def.Implementation == nil {
		return fmt.Errorf("function %q has no implementation", def.Name)
	}
	if err := def.Arguments.Validate(); err != nil {
		return fmt.Errorf("function %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("function %q registered after the agent started listening", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Metadata returns the published description of every function, keyed by
// name. Missing permissions are reported as an empty object.
func (r *Registry) Metadata() map[string]Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metadata, len(r.defs))
	for name, def := range r.defs {
		args := def.Arguments
		if args == nil {
			args = schema.Schema{}
		}
		var perms Permissions
		if def.Permissions != nil {
			perms = *def.Permissions
		}
		out[name] = Metadata{Arguments: args, Permissions: perms}
	}
	return out
}

// Seal rejects further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
