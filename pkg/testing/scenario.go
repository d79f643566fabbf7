// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides utilities for testing PIPO agents: declarative
// request scenarios, a scripted LLM provider, and assertion helpers over
// execution results.
//
// Example usage:
//
//	scenario := testing.NewScenario("echo request").
//	    WithInput("echo hello").
//	    ExpectSuccess().
//	    ExpectOutput("step_1", testing.Equals("hello"))
//
//	result := scenario.Run(t, agent)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/executor"
)

// Scenario defines one request-to-result test case for an agent.
type Scenario struct {
	name          string
	description   string
	input         string
	context       context.Context
	timeout       time.Duration
	expectations  []Expectation
	setupFuncs    []func() error
	teardownFuncs []func() error
}

// Expectation is a condition verified against a scenario result.
type Expectation interface {
	Check(result *ScenarioResult) error
	Description() string
}

// ScenarioResult is the outcome of running a scenario.
type ScenarioResult struct {
	Result   *executor.Result
	Duration time.Duration
}

// RequestProcessor runs one natural-language request end to end. The
// agent satisfies this.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, text string) *executor.Result
}

// NewScenario creates a scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		timeout: 30 * time.Second,
		context: context.Background(),
	}
}

// WithDescription adds a description to the scenario.
func (s *Scenario) WithDescription(desc string) *Scenario {
	s.description = desc
	return s
}

// WithInput sets the request text.
func (s *Scenario) WithInput(input string) *Scenario {
	s.input = input
	return s
}

// WithContext sets the base context.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout sets the run timeout.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithSetup adds a setup function run before the scenario.
func (s *Scenario) WithSetup(fn func() error) *Scenario {
	s.setupFuncs = append(s.setupFuncs, fn)
	return s
}

// WithTeardown adds a teardown function run after the scenario.
func (s *Scenario) WithTeardown(fn func() error) *Scenario {
	s.teardownFuncs = append(s.teardownFuncs, fn)
	return s
}

// Expect adds an expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectSuccess expects the run to complete without error.
func (s *Scenario) ExpectSuccess() *Scenario {
	return s.Expect(&successExpectation{})
}

// ExpectFailure expects the run to fail with an error matching the matcher.
func (s *Scenario) ExpectFailure(matcher StringMatcher) *Scenario {
	return s.Expect(&failureExpectation{matcher: matcher})
}

// ExpectSummary expects the result summary to match.
func (s *Scenario) ExpectSummary(matcher StringMatcher) *Scenario {
	return s.Expect(&summaryExpectation{matcher: matcher})
}

// ExpectOutput expects the raw output under key to match when rendered as a
// string.
func (s *Scenario) ExpectOutput(key string, matcher StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{key: key, matcher: matcher})
}

// ExpectOutputCount expects exactly n raw outputs.
func (s *Scenario) ExpectOutputCount(n int) *Scenario {
	return s.Expect(&outputCountExpectation{count: n})
}

// ExpectMetadata expects a metadata entry with the given key and value.
func (s *Scenario) ExpectMetadata(key string, value any) *Scenario {
	return s.Expect(&metadataExpectation{key: key, value: value})
}

// ExpectMaxDuration expects the run to complete within d.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(&maxDurationExpectation{max: d})
}

// Run executes the scenario against the given processor.
func (s *Scenario) Run(t *testing.T, agent RequestProcessor) *ScenarioResult {
	t.Helper()

	for _, setup := range s.setupFuncs {
		if err := setup(); err != nil {
			t.Fatalf("scenario %q setup failed: %v", s.name, err)
		}
	}
	defer func() {
		for _, teardown := range s.teardownFuncs {
			if err := teardown(); err != nil {
				t.Errorf("scenario %q teardown failed: %v", s.name, err)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	result := agent.ProcessRequest(ctx, s.input)
	duration := time.Since(start)

	return &ScenarioResult{
		Result:   result,
		Duration: duration,
	}
}

// Assert checks all expectations and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()

	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("expectation %q failed: %v", exp.Description(), err)
		}
	}
}

// StringMatcher defines how strings are matched in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals matches strings exactly.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex matches strings against a regular expression.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: pattern}
}

// HasPrefix matches strings with the given prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

// HasSuffix matches strings with the given suffix.
func HasSuffix(suffix string) StringMatcher {
	return &suffixMatcher{suffix: suffix}
}

type containsMatcher struct {
	substr string
}

func (m *containsMatcher) Match(s string) bool {
	return strings.Contains(s, m.substr)
}

func (m *containsMatcher) Description() string {
	return fmt.Sprintf("contains %q", m.substr)
}

type equalsMatcher struct {
	expected string
}

func (m *equalsMatcher) Match(s string) bool {
	return s == m.expected
}

func (m *equalsMatcher) Description() string {
	return fmt.Sprintf("equals %q", m.expected)
}

type regexMatcher struct {
	pattern string
}

func (m *regexMatcher) Match(s string) bool {
	re, err := regexp.Compile(m.pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func (m *regexMatcher) Description() string {
	return fmt.Sprintf("matches regex %q", m.pattern)
}

type prefixMatcher struct {
	prefix string
}

func (m *prefixMatcher) Match(s string) bool {
	return strings.HasPrefix(s, m.prefix)
}

func (m *prefixMatcher) Description() string {
	return fmt.Sprintf("has prefix %q", m.prefix)
}

type suffixMatcher struct {
	suffix string
}

func (m *suffixMatcher) Match(s string) bool {
	return strings.HasSuffix(s, m.suffix)
}

func (m *suffixMatcher) Description() string {
	return fmt.Sprintf("has suffix %q", m.suffix)
}

type successExpectation struct{}

func (e *successExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	if !r.Result.Success() {
		return fmt.Errorf("expected success, got error: %s", r.Result.Error)
	}
	return nil
}

func (e *successExpectation) Description() string {
	return "run succeeds"
}

type failureExpectation struct {
	matcher StringMatcher
}

func (e *failureExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	if r.Result.Success() {
		return fmt.Errorf("expected failure matching %s, run succeeded", e.matcher.Description())
	}
	if !e.matcher.Match(r.Result.Error) {
		return fmt.Errorf("error %q does not match: %s", r.Result.Error, e.matcher.Description())
	}
	return nil
}

func (e *failureExpectation) Description() string {
	return fmt.Sprintf("failure %s", e.matcher.Description())
}

type summaryExpectation struct {
	matcher StringMatcher
}

func (e *summaryExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	summary := fmt.Sprintf("%v", r.Result.Summary)
	if !e.matcher.Match(summary) {
		return fmt.Errorf("summary %q does not match: %s", summary, e.matcher.Description())
	}
	return nil
}

func (e *summaryExpectation) Description() string {
	return fmt.Sprintf("summary %s", e.matcher.Description())
}

type outputExpectation struct {
	key     string
	matcher StringMatcher
}

func (e *outputExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	v, ok := r.Result.RawOutputs[e.key]
	if !ok {
		return fmt.Errorf("output %q is missing", e.key)
	}
	rendered := fmt.Sprintf("%v", v)
	if !e.matcher.Match(rendered) {
		return fmt.Errorf("output %q = %q does not match: %s", e.key, rendered, e.matcher.Description())
	}
	return nil
}

func (e *outputExpectation) Description() string {
	return fmt.Sprintf("output %q %s", e.key, e.matcher.Description())
}

type outputCountExpectation struct {
	count int
}

func (e *outputCountExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	if len(r.Result.RawOutputs) != e.count {
		return fmt.Errorf("expected %d outputs, got %d", e.count, len(r.Result.RawOutputs))
	}
	return nil
}

func (e *outputCountExpectation) Description() string {
	return fmt.Sprintf("%d outputs", e.count)
}

type metadataExpectation struct {
	key   string
	value any
}

func (e *metadataExpectation) Check(r *ScenarioResult) error {
	if r.Result == nil {
		return fmt.Errorf("no result")
	}
	v, ok := r.Result.Metadata[e.key]
	if !ok {
		return fmt.Errorf("metadata %q is missing", e.key)
	}
	if v != e.value {
		return fmt.Errorf("metadata %q = %v, expected %v", e.key, v, e.value)
	}
	return nil
}

func (e *metadataExpectation) Description() string {
	return fmt.Sprintf("metadata %q = %v", e.key, e.value)
}

type maxDurationExpectation struct {
	max time.Duration
}

func (e *maxDurationExpectation) Check(r *ScenarioResult) error {
	if r.Duration > e.max {
		return fmt.Errorf("duration %v exceeds maximum %v", r.Duration, e.max)
	}
	return nil
}

func (e *maxDurationExpectation) Description() string {
	return fmt.Sprintf("duration <= %v", e.max)
}
