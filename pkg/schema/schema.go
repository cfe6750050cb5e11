// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema declares function argument schemas and coerces loosely typed
// wire arguments into validated call arguments.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ArgumentType is the declared type of an argument.
type ArgumentType string

const (
	TypeString  ArgumentType = "string"
	TypeBoolean ArgumentType = "boolean"
	TypeNumber  ArgumentType = "number"
	TypeDict    ArgumentType = "dict"
	TypeJSON    ArgumentType = "json"
)

// Valid reports whether t is one of the supported argument types.
func (t ArgumentType) Valid() bool {
	switch t {
	case TypeString, TypeBoolean, TypeNumber, TypeDict, TypeJSON:
		return true
	}
	return false
}

// Argument describes one named function argument.
type Argument struct {
	Name        string       `json:"-" yaml:"-"`
	Type        ArgumentType `json:"type" yaml:"type"`
	Array       bool         `json:"array" yaml:"array"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool         `json:"required" yaml:"required"`
}

// Schema is an ordered list of arguments. Declaration order is preserved when
// validating and when the schema is published to the orchestrator.
type Schema []Argument

// Names returns the argument names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, arg := range s {
		names = append(names, arg.Name)
	}
	return names
}

// Lookup returns the argument declared with name.
func (s Schema) Lookup(name string) (Argument, bool) {
	for _, arg := range s {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// Validate checks that every argument has a non-empty, unique name and a
// supported type.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, arg := range s {
		if arg.Name == "" {
			return fmt.Errorf("argument %d has no name", i)
		}
		if _, ok := seen[arg.Name]; ok {
			return fmt.Errorf("argument %q declared more than once", arg.Name)
		}
		seen[arg.Name] = struct{}{}
		if !arg.Type.Valid() {
			return fmt.Errorf("argument %q has unknown type %q", arg.Name, arg.Type)
		}
	}
	return nil
}

// MarshalJSON encodes the schema as a JSON object keyed by argument name,
// keeping declaration order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keyed by argument name, keeping the
// order in which keys appear.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema must be a JSON object")
	}
	out := Schema{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema key must be a string")
		}
		var arg Argument
		if err := dec.Decode(&arg); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
		arg.Name = name
		out = append(out, arg)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalYAML encodes the schema as an ordered YAML mapping.
func (s Schema) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, arg := range s {
		var value yaml.Node
		if err := value.Encode(arg); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: arg.Name},
			&value,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes an ordered YAML mapping of argument name to argument.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping", node.Line)
	}
	out := make(Schema, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var arg Argument
		if err := node.Content[i+1].Decode(&arg); err != nil {
			return err
		}
		arg.Name = node.Content[i].Value
		out = append(out, arg)
	}
	*s = out
	return nil
}
