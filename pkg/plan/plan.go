// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan defines the execution plan data model and the validator that
// proves a plan is structurally executable before any side effect occurs.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Step binds one action to a data-flow specification: literal argument
// bindings, named inputs sourced from earlier steps' outputs, and an
// optional key under which this step's output is stored.
// A Step is immutable after plan construction.
type Step struct {
	// Action is the registered action name this step executes.
	Action string `json:"action" yaml:"action"`

	// Description is a natural language description of this step.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Args are literal parameter bindings supplied by the proposer.
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`

	// InputMapping maps action parameter names to output keys of strictly
	// earlier steps.
	InputMapping map[string]string `json:"input_mapping,omitempty" yaml:"input_mapping,omitempty"`

	// OutputKey, if set, stores this step's output in the execution
	// context. Must be unique across the plan.
	OutputKey string `json:"output_key,omitempty" yaml:"output_key,omitempty"`
}

// Plan is an ordered sequence of steps aimed at a goal. A Plan exclusively
// owns its Steps and is read-only after validation.
type Plan struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Goal  string `json:"goal" yaml:"goal"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Describe returns a natural language description of the plan, used for
// logging and for the semantic judge.
func (p *Plan) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan to achieve: %s\n", p.Goal)
	for i, step := range p.Steps {
		desc := step.Description
		if desc == "" {
			desc = step.Action
		}
		fmt.Fprintf(&b, "\nStep %d: %s", i+1, desc)
		if len(step.InputMapping) > 0 {
			b.WriteString("\n  Using:")
			for _, param := range sortedKeys(step.InputMapping) {
				fmt.Fprintf(&b, "\n  - %s from %s", param, step.InputMapping[param])
			}
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
