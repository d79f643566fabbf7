package plan

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/action"
)

type stubAction struct {
	spec action.Spec
}

func (s *stubAction) Spec() action.Spec { return s.spec }

func (s *stubAction) Execute(_ context.Context, params action.Params) (any, error) {
	return params["value"], nil
}

func testCatalog(t *testing.T) *action.Registry {
	t.Helper()
	reg := action.NewRegistry()
	reg.MustRegister(&stubAction{spec: action.Spec{
		Name:        "echo",
		Description: "Returns its input unchanged.",
		Params: []action.ParamSpec{
			{Name: "value", Type: action.ParamString, Description: "Value to return", Required: true},
		},
	}})
	reg.MustRegister(&stubAction{spec: action.Spec{
		Name:        "web_search",
		Description: "Performs a web search.",
		Params: []action.ParamSpec{
			{Name: "query", Type: action.ParamString, Description: "Search query", Required: true},
			{Name: "num_results", Type: action.ParamInt, Description: "Number of results", Default: 5},
		},
	}})
	return reg
}

func TestValidateEmptyPlan(t *testing.T) {
	ok, msg := Validate(&Plan{Goal: "x"}, testCatalog(t))
	if ok {
		t.Fatalf("expected empty plan to be invalid")
	}
	if msg != "plan has no steps" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidateUnknownAction(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "teleport", Args: map[string]any{}},
	}}
	ok, msg := Validate(p, testCatalog(t))
	if ok {
		t.Fatalf("expected unknown action to be rejected")
	}
	if !strings.Contains(msg, "teleport") {
		t.Fatalf("message should name the action: %q", msg)
	}
}

func TestValidateForwardReferenceOnly(t *testing.T) {
	// Step 1 consumes a key only produced by step 2.
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", InputMapping: map[string]string{"value": "later"}},
		{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "later"},
	}}
	ok, msg := Validate(p, testCatalog(t))
	if ok {
		t.Fatalf("expected forward reference to be rejected")
	}
	if !strings.Contains(msg, "step 1") || !strings.Contains(msg, `"later"`) {
		t.Fatalf("message should name step and key: %q", msg)
	}
}

func TestValidateSelfReference(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a"}, InputMapping: map[string]string{"value": "x"}, OutputKey: "x"},
	}}
	if ok, _ := Validate(p, testCatalog(t)); ok {
		t.Fatalf("expected self reference to be rejected")
	}
}

func TestValidateDuplicateOutputKey(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
		{Action: "echo", Args: map[string]any{"value": "b"}, OutputKey: "x"},
	}}
	ok, msg := Validate(p, testCatalog(t))
	if ok {
		t.Fatalf("expected duplicate output key to be rejected")
	}
	if !strings.Contains(msg, "step 2") || !strings.Contains(msg, `"x"`) {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidateMissingRequiredParam(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "web_search"},
	}}
	ok, msg := Validate(p, testCatalog(t))
	if ok {
		t.Fatalf("expected missing required parameter to be rejected")
	}
	if !strings.Contains(msg, `"query"`) {
		t.Fatalf("message should name the parameter: %q", msg)
	}
}

func TestValidateUnknownParam(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a", "volume": 11}},
	}}
	ok, msg := Validate(p, testCatalog(t))
	if ok {
		t.Fatalf("expected unknown parameter to be rejected")
	}
	if !strings.Contains(msg, `"volume"`) {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidateRequiredCoveredByMapping(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
		{Action: "echo", InputMapping: map[string]string{"value": "x"}, OutputKey: "y"},
	}}
	if ok, msg := Validate(p, testCatalog(t)); !ok {
		t.Fatalf("expected valid plan, got: %q", msg)
	}
}

func TestValidateIdempotent(t *testing.T) {
	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", InputMapping: map[string]string{"value": "missing"}},
	}}
	cat := testCatalog(t)
	ok1, msg1 := Validate(p, cat)
	ok2, msg2 := Validate(p, cat)
	if ok1 != ok2 || msg1 != msg2 {
		t.Fatalf("validation not idempotent: (%v,%q) vs (%v,%q)", ok1, msg1, ok2, msg2)
	}
}

type stubJudge struct {
	ok     bool
	reason string
	err    error
}

func (j *stubJudge) Review(_ context.Context, _, _ string) (bool, string, error) {
	return j.ok, j.reason, j.err
}

func TestValidatorJudgeRejection(t *testing.T) {
	v := NewValidator(testCatalog(t))
	v.Judge = &stubJudge{ok: false, reason: "searching before knowing the topic"}

	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a"}, OutputKey: "x"},
	}}
	ok, msg := v.Validate(context.Background(), p)
	if ok {
		t.Fatalf("expected judge rejection")
	}
	if msg != "searching before knowing the topic" {
		t.Fatalf("expected judge reason, got: %q", msg)
	}
}

func TestValidatorJudgeFailure(t *testing.T) {
	v := NewValidator(testCatalog(t))
	v.Judge = &stubJudge{err: fmt.Errorf("upstream 503")}

	p := &Plan{Goal: "g", Steps: []Step{
		{Action: "echo", Args: map[string]any{"value": "a"}},
	}}
	ok, msg := v.Validate(context.Background(), p)
	if ok {
		t.Fatalf("expected judge failure to fail validation")
	}
	if !strings.Contains(msg, "plan review failed") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidatorStructuralBeforeJudge(t *testing.T) {
	// The judge must not run when structural validation already failed.
	v := NewValidator(testCatalog(t))
	v.Judge = &stubJudge{err: fmt.Errorf("judge should not be consulted")}

	ok, msg := v.Validate(context.Background(), &Plan{Goal: "g"})
	if ok {
		t.Fatalf("expected structural rejection")
	}
	if msg != "plan has no steps" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
