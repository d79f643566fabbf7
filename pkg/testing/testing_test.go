// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/executor"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
)

type stubProcessor struct {
	result *executor.Result
	input  string
}

func (s *stubProcessor) ProcessRequest(_ context.Context, text string) *executor.Result {
	s.input = text
	return s.result
}

func TestScenarioProviderScript(t *testing.T) {
	provider := NewScenarioProvider().
		AddResponse("first").
		AddResponse("second")

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "first" {
		t.Fatalf("Expected 'first', got %q", resp.Content)
	}

	resp, err = provider.Chat(context.Background(), llm.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "second" {
		t.Fatalf("Expected 'second', got %q", resp.Content)
	}

	if _, err := provider.Chat(context.Background(), llm.ChatRequest{}); err == nil {
		t.Fatal("Expected error after script is exhausted")
	}

	if provider.CallCount() != 3 {
		t.Fatalf("Expected 3 calls recorded, got %d", provider.CallCount())
	}
}

func TestScenarioProviderErrorAndDefault(t *testing.T) {
	scripted := errors.New("scripted failure")
	fallback := errors.New("script exhausted")
	provider := NewScenarioProvider().
		AddErrorResponse(scripted).
		WithDefaultError(fallback)

	if _, err := provider.Chat(context.Background(), llm.ChatRequest{}); !errors.Is(err, scripted) {
		t.Fatalf("Expected scripted error, got %v", err)
	}
	if _, err := provider.Chat(context.Background(), llm.ChatRequest{}); !errors.Is(err, fallback) {
		t.Fatalf("Expected default error, got %v", err)
	}
}

func TestScenarioProviderPlanResponse(t *testing.T) {
	p := &plan.Plan{
		Goal: "echo hello",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "hello"}, OutputKey: "said"},
		},
	}

	provider := NewScenarioProvider().AddPlanResponse(p)

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	parsed, err := plan.ParseJSON([]byte(resp.Content))
	if err != nil {
		t.Fatalf("Queued plan does not round-trip: %v", err)
	}
	if parsed.Goal != "echo hello" || len(parsed.Steps) != 1 {
		t.Fatalf("Unexpected plan: %+v", parsed)
	}
}

func TestScenarioProviderCapturesRequests(t *testing.T) {
	provider := NewScenarioProvider().AddResponse("ok")

	req := llm.ChatRequest{
		Model: "test-model",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a planner"},
			{Role: llm.RoleUser, Content: "do the thing"},
		},
	}
	if _, err := provider.Chat(context.Background(), req); err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	last := provider.LastRequest()
	if last == nil {
		t.Fatal("Expected captured request")
	}

	a := NewAssertions(t)
	a.AssertRequest(last).
		HasModel("test-model").
		HasMessageCount(2).
		HasSystemMessage("planner").
		HasUserMessage("do the thing")
	if a.Failed() {
		t.Fatal("Request assertions failed")
	}

	provider.Reset()
	if provider.CallCount() != 0 {
		t.Fatalf("Expected reset to clear requests, got %d", provider.CallCount())
	}
}

func TestScenarioRunSuccess(t *testing.T) {
	agent := &stubProcessor{
		result: &executor.Result{
			Summary:    "done",
			RawOutputs: map[string]any{"step_1": "hello"},
			Metadata:   map[string]any{"goal": "echo hello", "num_steps": 1},
		},
	}

	scenario := NewScenario("echo request").
		WithInput("echo hello").
		ExpectSuccess().
		ExpectSummary(Equals("done")).
		ExpectOutput("step_1", Equals("hello")).
		ExpectOutputCount(1).
		ExpectMetadata("num_steps", 1).
		ExpectMaxDuration(5 * time.Second)

	result := scenario.Run(t, agent)
	result.Assert(t, scenario)

	if agent.input != "echo hello" {
		t.Fatalf("Expected input passed through, got %q", agent.input)
	}
}

func TestScenarioFailureExpectation(t *testing.T) {
	agent := &stubProcessor{
		result: &executor.Result{
			Summary:    "Plan execution failed",
			RawOutputs: map[string]any{},
			Error:      "step 2 (fetch_content) failed: connection refused",
		},
	}

	scenario := NewScenario("failing fetch").
		WithInput("fetch the page").
		ExpectFailure(Contains("connection refused")).
		ExpectSummary(HasPrefix("Plan execution"))

	result := scenario.Run(t, agent)
	result.Assert(t, scenario)
}

func TestExpectationChecksReportMismatch(t *testing.T) {
	r := &ScenarioResult{
		Result: &executor.Result{
			Summary:    "done",
			RawOutputs: map[string]any{"step_1": "hello"},
		},
	}

	exp := &outputExpectation{key: "step_2", matcher: Equals("x")}
	if err := exp.Check(r); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("Expected missing output error, got %v", err)
	}

	fail := &failureExpectation{matcher: Contains("boom")}
	if err := fail.Check(r); err == nil {
		t.Fatal("Expected failure expectation to reject a successful result")
	}
}

func TestStringMatchers(t *testing.T) {
	cases := []struct {
		matcher StringMatcher
		input   string
		want    bool
	}{
		{Contains("ell"), "hello", true},
		{Contains("xyz"), "hello", false},
		{Equals("hello"), "hello", true},
		{Equals("hello"), "hello ", false},
		{Regex(`^step_\d+$`), "step_12", true},
		{Regex(`^step_\d+$`), "step_", false},
		{Regex(`(`), "anything", false},
		{HasPrefix("Plan"), "Plan validation failed", true},
		{HasSuffix("failed"), "Plan validation failed", true},
	}

	for _, tc := range cases {
		if got := tc.matcher.Match(tc.input); got != tc.want {
			t.Errorf("%s on %q: got %v, want %v", tc.matcher.Description(), tc.input, got, tc.want)
		}
	}
}

func TestResultAssertions(t *testing.T) {
	a := NewAssertions(t)
	result := &executor.Result{
		Summary:    "done",
		RawOutputs: map[string]any{"step_1": "hello"},
	}

	a.AssertResult(result).
		Succeeded().
		HasOutput("step_1").
		OutputEquals("step_1", "hello")
	if a.Failed() {
		t.Fatal("Result assertions failed on a valid result")
	}
}
