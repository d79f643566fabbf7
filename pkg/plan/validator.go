// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"

	"github.com/MagicOwO/pipo-agent/pkg/action"
)

// Catalog resolves action names. *action.Registry satisfies it; tests may
// use a fabricated catalog.
type Catalog interface {
	Lookup(name string) (action.Action, error)
}

// Judge is an optional semantic reviewer asked whether the step sequence is
// a reasonable approach to the goal. It is advisory: structural validation
// never depends on it, and it can be left nil for deterministic behavior.
type Judge interface {
	// Review returns whether the plan looks reasonable and, if not, why.
	Review(ctx context.Context, goal, planDescription string) (bool, string, error)
}

// Validator proves a plan is executable before running it.
type Validator struct {
	Catalog Catalog
	Judge   Judge
}

// NewValidator creates a validator over the given catalog.
func NewValidator(catalog Catalog) *Validator {
	return &Validator{Catalog: catalog}
}

// Validate runs the structural checks and, when a Judge is configured, the
// semantic check. It never mutates the plan; calling it repeatedly with the
// same input yields the same outcome. A judge transport failure is itself a
// validation failure, never silently ignored.
func (v *Validator) Validate(ctx context.Context, p *Plan) (bool, string) {
	if ok, msg := Validate(p, v.Catalog); !ok {
		return false, msg
	}
	if v.Judge != nil {
		ok, reason, err := v.Judge.Review(ctx, p.Goal, p.Describe())
		if err != nil {
			return false, fmt.Sprintf("plan review failed: %v", err)
		}
		if !ok {
			if reason == "" {
				reason = "plan judged unreasonable"
			}
			return false, reason
		}
	}
	return true, ""
}

// Validate runs the pure structural checks: non-empty steps, known actions,
// forward-reference-only data flow, declared parameters only, required
// parameters covered, unique output keys. Ordered, first failure wins.
// Step numbers in messages are 1-based.
func Validate(p *Plan, catalog Catalog) (bool, string) {
	if p == nil {
		return false, "plan is nil"
	}
	if len(p.Steps) == 0 {
		return false, "plan has no steps"
	}

	available := make(map[string]bool)
	for i, step := range p.Steps {
		n := i + 1

		if step.Action == "" {
			return false, fmt.Sprintf("step %d is missing an action name", n)
		}
		act, err := catalog.Lookup(step.Action)
		if err != nil {
			return false, fmt.Sprintf("step %d uses unknown action %q", n, step.Action)
		}
		spec := act.Spec()

		// Data flow: a step may only consume outputs of strictly earlier
		// steps, never its own or a later step's.
		for _, param := range sortedKeys(step.InputMapping) {
			source := step.InputMapping[param]
			if !available[source] {
				return false, fmt.Sprintf("step %d requires output %q which is not available", n, source)
			}
			if _, ok := spec.Param(param); !ok {
				return false, fmt.Sprintf("step %d maps unknown parameter %q for action %q", n, param, spec.Name)
			}
		}
		for name := range step.Args {
			if _, ok := spec.Param(name); !ok {
				return false, fmt.Sprintf("step %d sets unknown parameter %q for action %q", n, name, spec.Name)
			}
		}

		// Required parameters must be bound explicitly, either literally or
		// through the data flow. No silent defaulting.
		for _, param := range spec.Params {
			if !param.Required || param.Default != nil {
				continue
			}
			if _, ok := step.Args[param.Name]; ok {
				continue
			}
			if _, ok := step.InputMapping[param.Name]; ok {
				continue
			}
			return false, fmt.Sprintf("step %d missing required parameter %q for action %q", n, param.Name, spec.Name)
		}

		if step.OutputKey != "" {
			if available[step.OutputKey] {
				return false, fmt.Sprintf("step %d duplicates output key %q", n, step.OutputKey)
			}
			available[step.OutputKey] = true
		}
	}
	return true, ""
}
