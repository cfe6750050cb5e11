// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/jllopis/rpcagent/pkg/errors"
)

const invalidArgumentsHeader = "Invalid parameter(s) found:"

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Parse validates raw wire arguments against s and returns the coerced call
// arguments. raw must be a name/value mapping. Every field violation is
// collected, in declaration order, into a single InvalidArguments error.
// Only keys declared in s are returned.
func Parse(raw any, s Schema) (map[string]any, error) {
	args, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New(errors.CodeInvalidInput, "The given arguments are invalid.", nil).
			WithContext("type", fmt.Sprintf("%T", raw))
	}

	coerced, problems := Coerce(args, s)
	if len(problems) > 0 {
		msg := invalidArgumentsHeader + "\n" + strings.Join(problems, "\n")
		return nil, errors.InvalidArguments(msg).WithContext("errors", problems)
	}
	return coerced, nil
}

// Coerce converts each declared argument present in raw to its declared type.
//
// A value is absent when it is omitted, nil, or the empty string. Absent
// required arguments are reported; absent optional arguments are passed
// through untouched. The returned mapping holds exactly the declared names
// that appear in raw. Problems are returned in declaration order.
func Coerce(raw map[string]any, s Schema) (map[string]any, []string) {
	out := make(map[string]any, len(s))
	var problems []string

	for _, arg := range s {
		value, present := raw[arg.Name]
		if present {
			out[arg.Name] = value
		}

		if isAbsent(value) {
			if arg.Required {
				problems = append(problems, fmt.Sprintf("Argument \"%s\" is required but missing.", arg.Name))
			}
			continue
		}

		if arg.Array {
			items, ok := asList(value)
			if !ok {
				problems = append(problems, fmt.Sprintf("Argument \"%s\" should be an array.", arg.Name))
				continue
			}
			coerced := make([]any, len(items))
			allValid := true
			for i, item := range items {
				v, ok := coerceValue(item, arg.Type)
				coerced[i] = v
				allValid = allValid && ok
			}
			if !allValid {
				problems = append(problems, fmt.Sprintf("Argument \"%s\" should be an array of type \"%s\".", arg.Name, string(arg.Type)))
			}
			out[arg.Name] = coerced
			continue
		}

		v, ok := coerceValue(value, arg.Type)
		if !ok {
			problems = append(problems, fmt.Sprintf("Argument \"%s\" should be of type \"%s\".", arg.Name, string(arg.Type)))
		}
		out[arg.Name] = v
	}

	return out, problems
}

// coerceValue applies the scalar rule for t. On failure the original value is
// returned alongside false.
func coerceValue(value any, t ArgumentType) (any, bool) {
	switch t {
	case TypeString:
		return stringify(value), true
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(v) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return value, false
	case TypeNumber:
		if isNumber(value) {
			return value, true
		}
		if s, ok := value.(string); ok && numberPattern.MatchString(s) {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				return f, true
			}
		}
		return value, false
	case TypeDict:
		return value, isDict(value)
	case TypeJSON:
		return value, isJSONValue(value)
	default:
		return value, false
	}
}

func isAbsent(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func asList(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

func isDict(value any) bool {
	if _, ok := value.(map[string]any); ok {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// isJSONValue reports whether value is built only from strings, booleans,
// finite numbers, nil, string-keyed maps, and lists of those.
func isJSONValue(value any) bool {
	switch v := value.(type) {
	case nil, string, bool, json.Number:
		return true
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case map[string]any:
		for _, item := range v {
			if !isJSONValue(item) {
				return false
			}
		}
		return true
	case []any:
		for _, item := range v {
			if !isJSONValue(item) {
				return false
			}
		}
		return true
	}
	if isNumber(value) {
		return true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !isJSONValue(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := rv.MapRange()
		for iter.Next() {
			if !isJSONValue(iter.Value().Interface()) {
				return false
			}
		}
		return true
	}
	return false
}

// stringify renders any value as text. Structured values are rendered as
// JSON; numbers use their shortest decimal form.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	}
	if isNumber(value) {
		return fmt.Sprint(value)
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if data, err := json.Marshal(value); err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(value)
}
