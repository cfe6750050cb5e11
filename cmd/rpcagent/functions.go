// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/schema"
)

// customError carries a code, details and a stack like errors raised by
// host applications.
type customError struct {
	message string
	stack   string
	code    int
	details map[string]any
}

func (e *customError) Error() string      { return e.message }
func (e *customError) ErrorName() string  { return "CustomTestError" }
func (e *customError) StatusCode() int    { return e.code }
func (e *customError) Details() any       { return e.details }
func (e *customError) StackTrace() string { return e.stack }

// sampleFunctions are the demo functions exposed by "rpcagent run --samples".
func sampleFunctions() []registry.Definition {
	greeting := schema.Schema{
		{Name: "firstName", Type: schema.TypeString, Description: "Enter your first name", Required: true},
		{Name: "lastName", Type: schema.TypeString, Description: "Enter your last name", Required: true},
	}
	hello := registry.FunctionFunc(func(_ context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
		return fmt.Sprintf("Hello, %s %s!", args["firstName"], args["lastName"]), nil
	})

	return []registry.Definition{
		{
			Name:           "helloWorld",
			Arguments:      greeting,
			Implementation: hello,
		},
		{
			Name:           "helloWorldWithPermissions",
			Arguments:      greeting,
			Implementation: hello,
			Permissions: &registry.Permissions{
				GroupNames: []string{"Trailblazers"},
				UserEmails: []string{"trailblazers@example.com"},
			},
		},
		{
			Name: "plusTwoNumbers",
			Arguments: schema.Schema{
				{Name: "firstNumber", Type: schema.TypeNumber, Description: "Enter your first number", Required: true},
				{Name: "secondNumber", Type: schema.TypeNumber, Description: "Enter your second number", Required: true},
			},
			Implementation: registry.FunctionFunc(func(_ context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
				return toFloat(args["firstNumber"]) + toFloat(args["secondNumber"]), nil
			}),
		},
		{
			Name: "throwsCustomError",
			Implementation: registry.FunctionFunc(func(context.Context, map[string]any, core.InvocationContext) (any, error) {
				return nil, &customError{
					message: "This is the error message",
					stack:   "main.throwsCustomError\n\tcmd/rpcagent/functions.go",
					code:    500,
					details: map[string]any{"additionalInfo": []string{"foo", "bar"}, "baz": 123},
				}
			}),
		},
		{
			Name: "throwsStringError",
			Implementation: registry.FunctionFunc(func(context.Context, map[string]any, core.InvocationContext) (any, error) {
				panic("This is a string error")
			}),
		},
		{
			Name:      "echoInputs",
			Arguments: echoSchema(),
			Implementation: registry.FunctionFunc(func(_ context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
				return args, nil
			}),
		},
	}
}

func echoSchema() schema.Schema {
	types := []schema.ArgumentType{schema.TypeString, schema.TypeNumber, schema.TypeBoolean, schema.TypeDict, schema.TypeJSON}
	var s schema.Schema
	for _, array := range []bool{false, true} {
		for _, t := range types {
			name := string(t) + "Input"
			desc := string(t) + " input"
			if array {
				name = string(t) + "ArrayInput"
				desc = string(t) + " array input"
			}
			s = append(s, schema.Argument{Name: name, Type: t, Array: array, Description: desc})
		}
	}
	return s
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
