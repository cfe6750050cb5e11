// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quotaError struct {
	limit int
}

func (e *quotaError) Error() string { return fmt.Sprintf("quota of %d exceeded", e.limit) }
func (e *quotaError) StatusCode() int { return 429 }
func (e *quotaError) Details() any { return map[string]any{"limit": e.limit} }
func (e *quotaError) StackTrace() string { return "quota.go:12" }

type textCodeError struct {
	code string
}

func (e textCodeError) Error() string { return "text code" }
func (e textCodeError) StatusCode() string { return e.code }

func TestNormalizeAgentError(t *testing.T) {
	out := Normalize(FunctionNotFound("missing"))

	assert.Equal(t, NameFunctionNotFoundError, out.Name)
	assert.Equal(t, `Function "missing" not found on remote agent server.`, out.Message)
	assert.Nil(t, out.Code)
	assert.Nil(t, out.Details)
	assert.Empty(t, out.Stack)
}

func TestNormalizeAgentErrorWithStatusAndDetails(t *testing.T) {
	ae := New(CodeAgentServer, "upstream refused", nil).
		WithStatus(502).
		WithDetails(map[string]any{"upstream": "billing"})

	out := Normalize(ae)

	assert.Equal(t, NameAgentServerError, out.Name)
	require.NotNil(t, out.Code)
	assert.Equal(t, 502, *out.Code)
	assert.Equal(t, map[string]any{"upstream": "billing"}, out.Details)
}

func TestNormalizeCustomError(t *testing.T) {
	out := Normalize(&quotaError{limit: 10})

	assert.Equal(t, "quotaError", out.Name)
	assert.Equal(t, "quota of 10 exceeded", out.Message)
	assert.Equal(t, "quota.go:12", out.Stack)
	require.NotNil(t, out.Code)
	assert.Equal(t, 429, *out.Code)
	assert.Equal(t, map[string]any{"limit": 10}, out.Details)
}

func TestNormalizeWrappedCustomError(t *testing.T) {
	out := Normalize(fmt.Errorf("charge card: %w", &quotaError{limit: 3}))

	assert.Equal(t, NameAgentServerError, out.Name)
	assert.Equal(t, "charge card: quota of 3 exceeded", out.Message)
	require.NotNil(t, out.Code)
	assert.Equal(t, 429, *out.Code)
}

func TestNormalizeTextCodes(t *testing.T) {
	tests := []struct {
		code string
		want *int
	}{
		{code: "404", want: intPtr(404)},
		{code: " 12 ", want: intPtr(12)},
		{code: "E_NOPE", want: nil},
		{code: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			out := Normalize(textCodeError{code: tt.code})
			assert.Equal(t, "textCodeError", out.Name)
			assert.Equal(t, tt.want, out.Code)
		})
	}
}

func TestNormalizePlainError(t *testing.T) {
	out := Normalize(errors.New("This is the error message."))

	assert.Equal(t, NameAgentServerError, out.Name)
	assert.Equal(t, "This is the error message.", out.Message)
	assert.Nil(t, out.Code)
}

func TestNormalizeString(t *testing.T) {
	out := Normalize("attributes must be an object")

	assert.Equal(t, NormalizedError{Name: NameAgentServerError, Message: "attributes must be an object"}, out)
}

func TestNormalizeUnknown(t *testing.T) {
	for _, v := range []any{nil, 42, struct{}{}, []string{"a"}} {
		out := Normalize(v)
		assert.Equal(t, NormalizedError{Name: NameAgentServerError, Message: "Unknown agent server error"}, out)
	}
}

func TestNormalizePanic(t *testing.T) {
	out := NormalizePanic("boom", []byte("goroutine 1 [running]"))
	assert.Equal(t, NameAgentServerError, out.Name)
	assert.Equal(t, "boom", out.Message)
	assert.Equal(t, "goroutine 1 [running]", out.Stack)

	out = NormalizePanic(&quotaError{limit: 1}, []byte("ignored"))
	assert.Equal(t, "quota.go:12", out.Stack)
}

func intPtr(v int) *int { return &v }
