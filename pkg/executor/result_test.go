package executor

import (
	"strings"
	"testing"
)

func TestResultSuccess(t *testing.T) {
	ok := &Result{Summary: "done"}
	if !ok.Success() {
		t.Fatalf("result without error should succeed")
	}
	bad := &Result{Error: "[EXECUTION_ERROR] step 2 failed"}
	if bad.Success() {
		t.Fatalf("result with error should not succeed")
	}
}

func TestResultString(t *testing.T) {
	ok := &Result{Summary: "done"}
	if got := ok.String(); got != "Success: done" {
		t.Fatalf("unexpected string: %q", got)
	}
	bad := &Result{Error: "boom"}
	if got := bad.String(); got != "Error: boom" {
		t.Fatalf("unexpected string: %q", got)
	}
}

func TestResultToText(t *testing.T) {
	r := &Result{
		Summary: "two echoes",
		RawOutputs: map[string]any{
			"step_10": "j",
			"step_2":  "b",
			"step_1":  "a",
		},
		Metadata: map[string]any{"goal": "G", "num_steps": 3},
	}

	text := r.ToText()
	if !strings.Contains(text, "Execution completed successfully.") {
		t.Fatalf("missing header: %q", text)
	}
	// step_10 sorts after step_2 because keys are ordered by length first.
	i1 := strings.Index(text, "step_1:")
	i2 := strings.Index(text, "step_2:")
	i10 := strings.Index(text, "step_10:")
	if i1 < 0 || i2 < 0 || i10 < 0 || !(i1 < i2 && i2 < i10) {
		t.Fatalf("outputs not in step order: %q", text)
	}
	if !strings.Contains(text, "goal: G") || !strings.Contains(text, "num_steps: 3") {
		t.Fatalf("metadata missing: %q", text)
	}
}

func TestResultToTextFailure(t *testing.T) {
	r := &Result{Error: "step 2 failed"}
	if got := r.ToText(); got != "Execution failed: step 2 failed" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestResultToTextTruncatesLongOutputs(t *testing.T) {
	r := &Result{
		Summary:    "big",
		RawOutputs: map[string]any{"step_1": strings.Repeat("x", 500)},
	}
	text := r.ToText()
	if !strings.Contains(text, strings.Repeat("x", 100)+"...") {
		t.Fatalf("long output not truncated: %q", text)
	}
	if strings.Contains(text, strings.Repeat("x", 101)) {
		t.Fatalf("output exceeds truncation limit")
	}
}

func TestSummaryStringStructured(t *testing.T) {
	got := summaryString(map[string]any{"b": 2, "a": 1})
	if got != "a: 1, b: 2" {
		t.Fatalf("unexpected structured summary: %q", got)
	}
	if summaryString(nil) != "" {
		t.Fatalf("nil summary should render empty")
	}
}
