// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance gates which registered actions a plan may use.
// An ActionPolicy combines allow/deny glob lists with an ordered rule set;
// plans touching a denied action are rejected before execution.
package governance

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
)

// DecisionStatus captures a policy outcome.
type DecisionStatus string

const (
	DecisionAllow DecisionStatus = "allow"
	DecisionDeny  DecisionStatus = "deny"
)

// Decision is the outcome of evaluating an action name.
type Decision struct {
	Status DecisionStatus
	Reason string
	RuleID string
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Status == DecisionAllow
}

// Rule is one ordered policy rule. Pattern is a glob over action names;
// an empty pattern matches everything.
type Rule struct {
	ID      string
	Effect  string // allow or deny
	Pattern string
	Reason  string
}

// RuleSet evaluates rules in order; the first match wins.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet copies the rules. An empty set allows everything.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{rules: append([]Rule(nil), rules...)}
}

// Evaluate returns the first matching rule's decision, or allow.
func (r *RuleSet) Evaluate(name string) Decision {
	for _, rule := range r.rules {
		if !matchPattern(rule.Pattern, name) {
			continue
		}
		d := Decision{Reason: rule.Reason, RuleID: rule.ID}
		if strings.EqualFold(rule.Effect, "deny") {
			d.Status = DecisionDeny
		} else {
			d.Status = DecisionAllow
		}
		return d
	}
	return Decision{Status: DecisionAllow}
}

func matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	if ok, err := path.Match(pattern, value); err == nil && ok {
		return true
	}
	return pattern == value
}

// ActionPolicy decides which action names plans may use.
//
// Evaluation order:
//  1. denylist match → deny
//  2. non-empty allowlist without a match → deny
//  3. rule set, first match wins
//  4. allow
type ActionPolicy struct {
	allow map[string]bool
	deny  map[string]bool
	rules *RuleSet
}

// PolicyOption configures an ActionPolicy.
type PolicyOption func(*ActionPolicy)

// NewActionPolicy builds a policy. With no options everything is allowed.
func NewActionPolicy(opts ...PolicyOption) *ActionPolicy {
	p := &ActionPolicy{
		allow: make(map[string]bool),
		deny:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithAllowlist restricts plans to the listed action name patterns.
func WithAllowlist(patterns []string) PolicyOption {
	return func(p *ActionPolicy) {
		for _, pat := range patterns {
			if pat = strings.TrimSpace(pat); pat != "" {
				p.allow[pat] = true
			}
		}
	}
}

// WithDenylist forbids the listed action name patterns.
func WithDenylist(patterns []string) PolicyOption {
	return func(p *ActionPolicy) {
		for _, pat := range patterns {
			if pat = strings.TrimSpace(pat); pat != "" {
				p.deny[pat] = true
			}
		}
	}
}

// WithRules attaches an ordered rule set evaluated after the lists.
func WithRules(rules []Rule) PolicyOption {
	return func(p *ActionPolicy) {
		p.rules = NewRuleSet(rules)
	}
}

// FromConfig builds a policy from configuration.
func FromConfig(cfg config.PolicyConfig) *ActionPolicy {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = "rule"
		}
		rules = append(rules, Rule{
			ID:      id,
			Effect:  r.Effect,
			Pattern: r.Pattern,
			Reason:  r.Reason,
		})
	}
	return NewActionPolicy(
		WithAllowlist(cfg.Allow),
		WithDenylist(cfg.Deny),
		WithRules(rules),
	)
}

// IsAllowed evaluates a single action name.
func (p *ActionPolicy) IsAllowed(_ context.Context, name string) Decision {
	if matchesAny(name, p.deny) {
		return Decision{Status: DecisionDeny, Reason: "action is denied by policy"}
	}
	if len(p.allow) > 0 && !matchesAny(name, p.allow) {
		return Decision{Status: DecisionDeny, Reason: "action is not in the allowlist"}
	}
	if p.rules != nil {
		return p.rules.Evaluate(name)
	}
	return Decision{Status: DecisionAllow}
}

// CheckPlan refuses the plan if any step uses a denied action. The reason
// names the offending step.
func (p *ActionPolicy) CheckPlan(ctx context.Context, pl *plan.Plan) Decision {
	for i, step := range pl.Steps {
		d := p.IsAllowed(ctx, step.Action)
		if !d.Allowed() {
			d.Reason = fmt.Sprintf("step %d (%s): %s", i+1, step.Action, d.Reason)
			return d
		}
	}
	return Decision{Status: DecisionAllow}
}

// FilterSpecs keeps only the specs whose actions the policy allows. It is
// used to trim the catalog before it is shown to the planner.
func (p *ActionPolicy) FilterSpecs(ctx context.Context, specs []action.Spec) []action.Spec {
	if len(p.allow) == 0 && len(p.deny) == 0 && p.rules == nil {
		return specs
	}
	filtered := make([]action.Spec, 0, len(specs))
	for _, spec := range specs {
		if p.IsAllowed(ctx, spec.Name).Allowed() {
			filtered = append(filtered, spec)
		}
	}
	return filtered
}

func matchesAny(name string, patterns map[string]bool) bool {
	if patterns[name] {
		return true
	}
	for pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
