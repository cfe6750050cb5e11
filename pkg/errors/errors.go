// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed agent errors and the normalization of
// arbitrary failures into wire-safe error records.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies agent errors for reporting and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal agent error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeFunctionNotFound indicates the requested function is not registered.
	CodeFunctionNotFound ErrorCode = "FUNCTION_NOT_FOUND"

	// CodeInvalidArguments indicates one or more arguments failed schema validation.
	CodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"

	// CodeInvalidInput indicates the arguments were not a name/value mapping.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeAgentServer indicates a failure raised while running a registered function.
	CodeAgentServer ErrorCode = "AGENT_SERVER_ERROR"

	// CodeClient indicates the orchestrator rejected a request (HTTP 4xx).
	CodeClient ErrorCode = "CLIENT_ERROR"

	// CodeServer indicates the orchestrator failed a request (HTTP 5xx or other non-2xx).
	CodeServer ErrorCode = "SERVER_ERROR"

	// CodeTransport indicates the request never produced an HTTP response.
	CodeTransport ErrorCode = "TRANSPORT_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"
)

// Names reported to the orchestrator for each error classification.
const (
	NameAgentServerError      = "AgentServerError"
	NameFunctionNotFoundError = "FunctionNotFoundError"
	NameInvalidArgumentsError = "InvalidArgumentsError"
	NameValueError            = "ValueError"
	NameTransportError        = "TransportError"
	NameTimeoutError          = "TimeoutError"
)

// AgentError is a typed error with context for logging and reporting.
// It implements the error interface and can be unwrapped with errors.As().
type AgentError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool

	// Status is an optional numeric code reported with the normalized error.
	// For transport errors it holds the HTTP status code.
	Status int

	// Data is an optional payload reported as the normalized error details.
	Data any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// ErrorName returns the name reported to the orchestrator.
func (e *AgentError) ErrorName() string {
	switch e.Code {
	case CodeFunctionNotFound:
		return NameFunctionNotFoundError
	case CodeInvalidArguments:
		return NameInvalidArgumentsError
	case CodeInvalidInput:
		return NameValueError
	case CodeClient, CodeServer, CodeTransport:
		return NameTransportError
	case CodeTimeout:
		return NameTimeoutError
	default:
		return NameAgentServerError
	}
}

// StatusCode returns the numeric status attached to the error, zero when unset.
func (e *AgentError) StatusCode() int {
	return e.Status
}

// Details returns the payload attached with WithDetails.
func (e *AgentError) Details() any {
	return e.Data
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Status      int                    `json:"status,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
	}{
		Message:     e.Message,
		Code:        string(e.Code),
		Err:         cause,
		Status:      e.Status,
		Recoverable: e.Recoverable,
		Context:     e.Context,
	})
}

// New creates a new AgentError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStatus sets the numeric status reported with the error.
func (e *AgentError) WithStatus(status int) *AgentError {
	e.Status = status
	return e
}

// WithDetails sets the payload reported as error details.
func (e *AgentError) WithDetails(details any) *AgentError {
	e.Data = details
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// FunctionNotFound returns the error reported for an unknown function name.
func FunctionNotFound(name string) *AgentError {
	return New(CodeFunctionNotFound,
		fmt.Sprintf("Function \"%s\" not found on remote agent server.", name), nil).
		WithContext("function", name)
}

// InvalidArguments returns the error reported when argument validation fails.
func InvalidArguments(msg string) *AgentError {
	return New(CodeInvalidArguments, msg, nil)
}

// AsAgentError attempts to convert an error to an AgentError.
// Returns the error as AgentError if it is one, or wraps it otherwise.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the classification of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsClientError reports whether err is an orchestrator rejection (HTTP 4xx).
func IsClientError(err error) bool {
	return err != nil && CodeOf(err) == CodeClient
}

// IsRecoverable reports whether err may succeed when retried.
// Foreign errors are considered recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Recoverable
	}
	return true
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *AgentError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
