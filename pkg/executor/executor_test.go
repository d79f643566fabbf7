package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
)

type echoAction struct{}

func (echoAction) Spec() action.Spec {
	return action.Spec{
		Name:        "echo",
		Description: "Returns its input unchanged.",
		Params: []action.ParamSpec{
			{Name: "value", Type: action.ParamString, Description: "Value to return", Required: true},
		},
	}
}

func (echoAction) Execute(_ context.Context, params action.Params) (any, error) {
	return params["value"], nil
}

type recordingAction struct {
	name  string
	calls *[]action.Params
	fail  bool
}

func (a *recordingAction) Spec() action.Spec {
	return action.Spec{
		Name:        a.name,
		Description: "Records its calls.",
		Params: []action.ParamSpec{
			{Name: "value", Type: action.ParamString, Description: "Value to record"},
			{Name: "count", Type: action.ParamInt, Description: "A counter", Default: 1},
		},
	}
}

func (a *recordingAction) Execute(_ context.Context, params action.Params) (any, error) {
	*a.calls = append(*a.calls, params)
	if a.fail {
		return nil, fmt.Errorf("upstream unavailable")
	}
	return params["value"], nil
}

func testRegistry(t *testing.T, extra ...action.Action) *action.Registry {
	t.Helper()
	reg := action.NewRegistry()
	reg.MustRegister(echoAction{})
	for _, a := range extra {
		reg.MustRegister(a)
	}
	return reg
}

func TestExecuteRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	exec := New(reg)

	p := &plan.Plan{
		ID:   "plan-rt",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
			{Action: "echo", InputMapping: map[string]string{"value": "x"}, OutputKey: "y"},
		},
	}
	if ok, msg := plan.Validate(p, reg); !ok {
		t.Fatalf("plan should validate: %s", msg)
	}

	result := exec.Execute(context.Background(), p)
	if !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if result.RawOutputs["step_1"] != "a" {
		t.Fatalf("unexpected step_1 output: %v", result.RawOutputs["step_1"])
	}
	if result.RawOutputs["step_2"] != "a" {
		t.Fatalf("unexpected step_2 output: %v", result.RawOutputs["step_2"])
	}
	if result.Metadata["goal"] != "G" || result.Metadata["num_steps"] != 2 {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
}

func TestExecuteOrdering(t *testing.T) {
	var calls []action.Params
	first := &recordingAction{name: "first", calls: &calls}
	second := &recordingAction{name: "second", calls: &calls}
	exec := New(testRegistry(t, first, second))

	p := &plan.Plan{
		ID:   "plan-ord",
		Goal: "ordered",
		Steps: []plan.Step{
			{Action: "first", Args: map[string]any{"value": "from-first"}, OutputKey: "out1"},
			{Action: "second", InputMapping: map[string]string{"value": "out1"}, OutputKey: "out2"},
		},
	}

	result := exec.Execute(context.Background(), p)
	if !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	// The second step's bound parameter is exactly the first step's output.
	if v, _ := calls[1].String("value"); v != "from-first" {
		t.Fatalf("second step did not receive first step's output: %v", calls[1])
	}
}

func TestExecutePartialFailure(t *testing.T) {
	var calls []action.Params
	boom := &recordingAction{name: "boom", calls: &calls, fail: true}
	after := &recordingAction{name: "after", calls: &calls}
	exec := New(testRegistry(t, boom, after))

	p := &plan.Plan{
		ID:   "plan-fail",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "kept"}, OutputKey: "x"},
			{Action: "boom", Args: map[string]any{"value": "b"}, OutputKey: "y"},
			{Action: "after", Args: map[string]any{"value": "never"}, OutputKey: "z"},
		},
	}

	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatalf("expected failure")
	}
	if result.RawOutputs["step_1"] != "kept" {
		t.Fatalf("step_1 output not preserved: %+v", result.RawOutputs)
	}
	if _, ok := result.RawOutputs["step_2"]; ok {
		t.Fatalf("failed step must not record output")
	}
	if _, ok := result.RawOutputs["step_3"]; ok {
		t.Fatalf("step after failure must not run")
	}
	if result.Metadata["failed_step"] != 2 {
		t.Fatalf("unexpected failed_step: %v", result.Metadata["failed_step"])
	}
	if result.Metadata["completed_steps"] != 1 {
		t.Fatalf("unexpected completed_steps: %v", result.Metadata["completed_steps"])
	}
	if !strings.Contains(result.Error, "upstream unavailable") {
		t.Fatalf("error should carry the cause: %q", result.Error)
	}
	// Only echo and boom ran.
	if len(calls) != 1 {
		t.Fatalf("expected 1 recorded call (boom), got %d", len(calls))
	}
}

func TestExecuteDefaultsApplied(t *testing.T) {
	var calls []action.Params
	rec := &recordingAction{name: "rec", calls: &calls}
	exec := New(testRegistry(t, rec))

	p := &plan.Plan{
		ID:   "plan-def",
		Goal: "defaults",
		Steps: []plan.Step{
			{Action: "rec", Args: map[string]any{"value": "v"}, OutputKey: "out"},
		},
	}
	if result := exec.Execute(context.Background(), p); !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if n, ok := calls[0].Int("count"); !ok || n != 1 {
		t.Fatalf("default parameter not applied: %+v", calls[0])
	}
}

func TestExecuteNoOutputKeyNotRecorded(t *testing.T) {
	exec := New(testRegistry(t))
	p := &plan.Plan{
		ID:   "plan-nokey",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "a"}},
		},
	}
	result := exec.Execute(context.Background(), p)
	if !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if len(result.RawOutputs) != 0 {
		t.Fatalf("expected no recorded outputs: %+v", result.RawOutputs)
	}
}

func TestExecuteUnvalidatedPlanFailsSafely(t *testing.T) {
	exec := New(testRegistry(t))
	p := &plan.Plan{
		ID:   "plan-bad",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", InputMapping: map[string]string{"value": "never-produced"}},
		},
	}
	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatalf("expected failure for unvalidated plan")
	}
	if result.Metadata["internal"] != true {
		t.Fatalf("contract violation must be marked internal: %+v", result.Metadata)
	}
	if !strings.Contains(result.Error, "INTERNAL_ERROR") {
		t.Fatalf("expected internal error code in: %q", result.Error)
	}
}

func TestExecuteUnknownActionFailsSafely(t *testing.T) {
	exec := New(testRegistry(t))
	p := &plan.Plan{
		ID:   "plan-unknown",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "teleport"},
		},
	}
	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatalf("expected failure")
	}
	if result.Metadata["internal"] != true {
		t.Fatalf("post-validation unknown action must be internal: %+v", result.Metadata)
	}
}

type staticSummarizer struct {
	summary string
	err     error
	goals   []string
}

func (s *staticSummarizer) Summarize(_ context.Context, goal string, _ map[string]any) (string, error) {
	s.goals = append(s.goals, goal)
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func TestExecuteSummarizer(t *testing.T) {
	summ := &staticSummarizer{summary: "all done"}
	exec := New(testRegistry(t), WithSummarizer(summ))

	p := &plan.Plan{
		ID:   "plan-sum",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
		},
	}
	result := exec.Execute(context.Background(), p)
	if !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if result.Summary != "all done" {
		t.Fatalf("unexpected summary: %v", result.Summary)
	}
	if len(summ.goals) != 1 || summ.goals[0] != "G" {
		t.Fatalf("summarizer not invoked with goal: %+v", summ.goals)
	}
}

func TestExecuteSummarizerFailure(t *testing.T) {
	summ := &staticSummarizer{err: fmt.Errorf("model offline")}
	exec := New(testRegistry(t), WithSummarizer(summ))

	p := &plan.Plan{
		ID:   "plan-sumfail",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
		},
	}
	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatalf("expected summary failure to fail the run")
	}
	if result.RawOutputs["step_1"] != "a" {
		t.Fatalf("outputs must be preserved on summary failure: %+v", result.RawOutputs)
	}
}

func TestExecuteAuditTrail(t *testing.T) {
	store := NewMemoryAuditStore()
	var hooked []AuditEvent
	exec := New(testRegistry(t),
		WithAuditStore(store),
		WithAuditHook(func(_ context.Context, event AuditEvent) {
			hooked = append(hooked, event)
		}),
	)

	p := &plan.Plan{
		ID:   "plan-audit",
		Goal: "G",
		Steps: []plan.Step{
			{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
		},
	}
	if result := exec.Execute(context.Background(), p); !result.Success() {
		t.Fatalf("expected success, got: %s", result.Error)
	}

	events, err := store.List(context.Background(), AuditFilter{PlanID: "plan-audit"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].Status != "started" || events[1].Status != "completed" {
		t.Fatalf("unexpected audit statuses: %+v", events)
	}
	if len(hooked) != 2 {
		t.Fatalf("expected hook for each event, got %d", len(hooked))
	}
}

type flakyAction struct {
	failures int
	calls    int
}

func (a *flakyAction) Spec() action.Spec {
	return action.Spec{
		Name:        "flaky",
		Description: "fails a fixed number of times, then succeeds",
		Params:      []action.ParamSpec{{Name: "value", Type: action.ParamString}},
	}
}

func (a *flakyAction) Execute(_ context.Context, params action.Params) (any, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, fmt.Errorf("transient failure %d", a.calls)
	}
	v, _ := params.String("value")
	return v, nil
}

func TestExecuteStepRetry(t *testing.T) {
	flaky := &flakyAction{failures: 2}
	retry := resilience.DefaultRetryConfig().
		WithMaxAttempts(3).
		WithInitialDelay(time.Millisecond).
		WithIsRecoverable(func(error) bool { return true })
	exec := New(testRegistry(t, flaky), WithStepRetry(retry))

	p := &plan.Plan{
		ID:    "plan-retry",
		Goal:  "retry",
		Steps: []plan.Step{{Action: "flaky", Args: map[string]any{"value": "ok"}, OutputKey: "out"}},
	}

	result := exec.Execute(context.Background(), p)
	if !result.Success() {
		t.Fatalf("expected success after retries, got: %s", result.Error)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
}

func TestExecuteStepRetryExhausted(t *testing.T) {
	flaky := &flakyAction{failures: 10}
	retry := resilience.DefaultRetryConfig().
		WithMaxAttempts(2).
		WithInitialDelay(time.Millisecond).
		WithIsRecoverable(func(error) bool { return true })
	exec := New(testRegistry(t, flaky), WithStepRetry(retry))

	p := &plan.Plan{
		ID:    "plan-retry-fail",
		Goal:  "retry",
		Steps: []plan.Step{{Action: "flaky", Args: map[string]any{"value": "ok"}}},
	}

	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatal("expected failure after exhausting retries")
	}
	if flaky.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", flaky.calls)
	}
}

type slowAction struct{}

func (slowAction) Spec() action.Spec {
	return action.Spec{Name: "slow", Description: "sleeps until cancelled"}
}

func (slowAction) Execute(ctx context.Context, _ action.Params) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return "done", nil
	}
}

func TestExecuteStepTimeout(t *testing.T) {
	exec := New(testRegistry(t, slowAction{}), WithStepTimeout(10*time.Millisecond))

	p := &plan.Plan{
		ID:    "plan-timeout",
		Goal:  "bounded",
		Steps: []plan.Step{{Action: "slow"}},
	}

	result := exec.Execute(context.Background(), p)
	if result.Success() {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Error, "timeout") {
		t.Fatalf("expected timeout in error, got: %s", result.Error)
	}
}
