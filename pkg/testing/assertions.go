// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"strings"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/executor"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// Assertions provides chainable assertion helpers.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates an assertions helper bound to t.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed reports whether any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.t.Errorf("%s: expected %v, got %v", msg, expected, actual)
		a.failed = true
	}
}

// AssertTrue asserts that the value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.t.Errorf("%s: expected true", msg)
		a.failed = true
	}
}

// AssertContains asserts that the string contains the substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.t.Errorf("%s: %q does not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.t.Errorf("%s: unexpected error: %v", msg, err)
		a.failed = true
	}
}

// AssertErrorContains asserts that the error message contains the substring.
func (a *Assertions) AssertErrorContains(err error, substr, msg string) {
	a.t.Helper()
	if err == nil {
		a.t.Errorf("%s: expected error containing %q, got nil", msg, substr)
		a.failed = true
		return
	}
	if !strings.Contains(err.Error(), substr) {
		a.t.Errorf("%s: error %q does not contain %q", msg, err.Error(), substr)
		a.failed = true
	}
}

// RequestAssertions provides assertions over a captured LLM request, for
// verifying the prompts the parser, proposer, and judge build.
type RequestAssertions struct {
	*Assertions
	req *llm.ChatRequest
}

// AssertRequest creates request assertions for the given request.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	if req == nil {
		a.t.Error("request is nil")
		a.failed = true
		return &RequestAssertions{Assertions: a, req: &llm.ChatRequest{}}
	}
	return &RequestAssertions{Assertions: a, req: req}
}

// HasModel asserts the request uses the given model.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.t.Errorf("expected model %q, got %q", model, r.req.Model)
		r.failed = true
	}
	return r
}

// HasMessageCount asserts the number of messages in the request.
func (r *RequestAssertions) HasMessageCount(count int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Messages) != count {
		r.t.Errorf("expected %d messages, got %d", count, len(r.req.Messages))
		r.failed = true
	}
	return r
}

// HasSystemMessage asserts a system message exists containing the substring.
func (r *RequestAssertions) HasSystemMessage(contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == llm.RoleSystem && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.t.Errorf("no system message containing %q found", contains)
	r.failed = true
	return r
}

// HasUserMessage asserts a user message exists containing the substring.
func (r *RequestAssertions) HasUserMessage(contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == llm.RoleUser && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.t.Errorf("no user message containing %q found", contains)
	r.failed = true
	return r
}

// ResultAssertions provides assertions over an execution result.
type ResultAssertions struct {
	*Assertions
	result *executor.Result
}

// AssertResult creates result assertions for the given result.
func (a *Assertions) AssertResult(result *executor.Result) *ResultAssertions {
	a.t.Helper()
	if result == nil {
		a.t.Error("result is nil")
		a.failed = true
		return &ResultAssertions{Assertions: a, result: &executor.Result{}}
	}
	return &ResultAssertions{Assertions: a, result: result}
}

// Succeeded asserts the run completed without error.
func (r *ResultAssertions) Succeeded() *ResultAssertions {
	r.t.Helper()
	if !r.result.Success() {
		r.t.Errorf("expected success, got error: %s", r.result.Error)
		r.failed = true
	}
	return r
}

// Failed asserts the run failed.
func (r *ResultAssertions) Failed() *ResultAssertions {
	r.t.Helper()
	if r.result.Success() {
		r.t.Error("expected failure, got success")
		r.failed = true
	}
	return r
}

// HasOutput asserts a raw output exists under key.
func (r *ResultAssertions) HasOutput(key string) *ResultAssertions {
	r.t.Helper()
	if _, ok := r.result.RawOutputs[key]; !ok {
		r.t.Errorf("output %q is missing", key)
		r.failed = true
	}
	return r
}

// OutputEquals asserts the raw output under key equals the expected value.
func (r *ResultAssertions) OutputEquals(key string, expected any) *ResultAssertions {
	r.t.Helper()
	v, ok := r.result.RawOutputs[key]
	if !ok {
		r.t.Errorf("output %q is missing", key)
		r.failed = true
		return r
	}
	if v != expected {
		r.t.Errorf("output %q = %v, expected %v", key, v, expected)
		r.failed = true
	}
	return r
}

// ErrorContains asserts the result error contains the substring.
func (r *ResultAssertions) ErrorContains(substr string) *ResultAssertions {
	r.t.Helper()
	if !strings.Contains(r.result.Error, substr) {
		r.t.Errorf("result error %q does not contain %q", r.result.Error, substr)
		r.failed = true
	}
	return r
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// RequireNotNil fails the test immediately if value is nil.
func RequireNotNil(t *testing.T, value any, msg string) {
	t.Helper()
	if value == nil {
		t.Fatalf("%s: expected non-nil value", msg)
	}
}
