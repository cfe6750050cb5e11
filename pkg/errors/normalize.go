// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"reflect"
	"strconv"
	"strings"
)

// NormalizedError is the wire representation of a failed query.
type NormalizedError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Code    *int   `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Namer is implemented by failures that choose their reported name.
type Namer interface {
	ErrorName() string
}

// Coder is implemented by failures carrying a numeric code.
type Coder interface {
	StatusCode() int
}

// TextCoder is implemented by failures carrying a textual code.
// Codes that do not parse as integers are dropped.
type TextCoder interface {
	StatusCode() string
}

// Detailer is implemented by failures carrying an extra payload.
type Detailer interface {
	Details() any
}

// StackTracer is implemented by failures that captured a trace.
type StackTracer interface {
	StackTrace() string
}

const unknownAgentServerError = "Unknown agent server error"

// Normalize converts an arbitrary failure into a NormalizedError.
//
// Errors keep their concrete kind name, message, and any code, details, or
// stack they expose. Plain strings become AgentServerError with the string as
// message. Anything else becomes a generic AgentServerError.
func Normalize(failure any) NormalizedError {
	switch v := failure.(type) {
	case error:
		return normalizeError(v)
	case string:
		return NormalizedError{Name: NameAgentServerError, Message: v}
	}
	return NormalizedError{Name: NameAgentServerError, Message: unknownAgentServerError}
}

// NormalizePanic normalizes a value recovered from a panic, using the panic
// stack when the value does not carry its own.
func NormalizePanic(recovered any, stack []byte) NormalizedError {
	out := Normalize(recovered)
	if out.Stack == "" && len(stack) > 0 {
		out.Stack = string(stack)
	}
	return out
}

func normalizeError(err error) NormalizedError {
	out := NormalizedError{
		Name:    errorName(err),
		Message: err.Error(),
	}

	var tracer StackTracer
	if stderrors.As(err, &tracer) {
		out.Stack = tracer.StackTrace()
	}

	var coder Coder
	var textCoder TextCoder
	switch {
	case stderrors.As(err, &coder):
		if code := coder.StatusCode(); code != 0 {
			out.Code = &code
		}
	case stderrors.As(err, &textCoder):
		if code, convErr := strconv.Atoi(strings.TrimSpace(textCoder.StatusCode())); convErr == nil && code != 0 {
			out.Code = &code
		}
	}

	var detailer Detailer
	if stderrors.As(err, &detailer) {
		if details := detailer.Details(); details != nil {
			out.Details = details
		}
	}

	return out
}

// errorName returns the reported name of err: its own choice when it
// implements Namer, otherwise its concrete type name. Anonymous error values
// from the standard errors and fmt packages are reported as AgentServerError.
func errorName(err error) string {
	if namer, ok := err.(Namer); ok {
		if name := namer.ErrorName(); name != "" {
			return name
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() {
	case "errors", "fmt":
		return NameAgentServerError
	}
	if t.Name() == "" {
		return NameAgentServerError
	}
	return t.Name()
}
