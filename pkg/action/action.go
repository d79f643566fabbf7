// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the capability unit of the agent: a typed,
// executable action with declared parameters, and the process-wide registry
// that maps action names to implementations.
package action

import (
	"context"
	"fmt"
	"strings"
)

// ParamType is the semantic type of a declared parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamList   ParamType = "list"
	ParamObject ParamType = "object"
)

// ParamSpec declares one named parameter of an action.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Spec describes an action type: its name, purpose, and parameter set.
// This is the contract surface shown to the external plan proposer, so the
// descriptions must be complete enough to pick correct actions and
// parameter names without seeing source.
type Spec struct {
	Name        string
	Description string
	Params      []ParamSpec
}

// Param returns the parameter spec with the given name.
func (s Spec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Describe renders the spec as catalog text for the plan proposer.
func (s Spec) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\n\nDescription:\n%s\n\nParameters:\n", s.Name, strings.TrimSpace(s.Description))
	if len(s.Params) == 0 {
		b.WriteString("No parameters required")
		return b.String()
	}
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", p.Name, p.Type)
		if p.Required {
			b.WriteString(" (required)")
		} else if p.Default != nil {
			fmt.Fprintf(&b, " (default: %v)", p.Default)
		}
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
	}
	return b.String()
}

// Params holds the bound parameter values for one execution of an action.
type Params map[string]any

// String returns the named parameter as a string.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the named parameter as an int, accepting the numeric types
// JSON and YAML decoding produce.
func (p Params) Int(name string) (int, bool) {
	v, ok := p[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Bool returns the named parameter as a bool.
func (p Params) Bool(name string) (bool, bool) {
	v, ok := p[name]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Action is a single typed, executable capability. Implementations must
// confine side effects to Execute, must not mutate shared state, and must
// return an error (never panic) on any failure so the executor can report
// it.
type Action interface {
	// Spec returns the action's declared name and parameter set.
	Spec() Spec

	// Execute runs the action with the given bound parameters. The caller
	// has already validated params against the spec. Execute must not
	// return until a definitive value or error is ready.
	Execute(ctx context.Context, params Params) (any, error)
}
