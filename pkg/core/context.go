// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
)

// InvocationContext is the opaque context the orchestrator attaches to a
// query, typically describing the calling user. It is passed to functions
// unchanged.
type InvocationContext map[string]any

// String returns the value stored under key when it is a string.
func (c InvocationContext) String(key string) string {
	s, _ := c[key].(string)
	return s
}

type queryIDKey struct{}
type invocationKey struct{}

// WithQueryID attaches a query id to the context.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryID returns the query id if present.
func QueryID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(queryIDKey{}).(string)
	return id, ok
}

// WithInvocation attaches the invocation context to ctx.
func WithInvocation(ctx context.Context, ic InvocationContext) context.Context {
	return context.WithValue(ctx, invocationKey{}, ic)
}

// InvocationFromContext returns the invocation context if present.
func InvocationFromContext(ctx context.Context) (InvocationContext, bool) {
	ic, ok := ctx.Value(invocationKey{}).(InvocationContext)
	return ic, ok
}
