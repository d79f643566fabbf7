// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor drives sequential execution of a validated plan,
// threading step outputs into later steps' inputs and producing exactly one
// Result per run.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/core"
	perrors "github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
)

// Status describes the lifecycle state of one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Summarizer produces the human summary of a completed run. Optional: when
// nil, the Result carries an empty summary.
type Summarizer interface {
	Summarize(ctx context.Context, goal string, outputs map[string]any) (string, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithSummarizer attaches a summarizer for completed runs.
func WithSummarizer(s Summarizer) Option {
	return func(e *Executor) { e.summarizer = s }
}

// WithAuditStore persists per-step audit events to the given store.
func WithAuditStore(store AuditStore) Option {
	return func(e *Executor) { e.auditStore = store }
}

// WithAuditHook invokes fn for every audit event, after the store write.
func WithAuditHook(fn func(ctx context.Context, event AuditEvent)) Option {
	return func(e *Executor) { e.auditHook = fn }
}

// WithStepRetry retries failed actions per the given config. Only errors
// the config considers recoverable are retried.
func WithStepRetry(cfg resilience.RetryConfig) Option {
	return func(e *Executor) { e.retry = &cfg }
}

// WithStepTimeout bounds each action execution. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// Executor runs validated plans against an action registry. One Executor
// may serve concurrent runs; all per-run state is local to Execute.
type Executor struct {
	registry    *action.Registry
	summarizer  Summarizer
	auditStore  AuditStore
	auditHook   func(ctx context.Context, event AuditEvent)
	retry       *resilience.RetryConfig
	stepTimeout time.Duration
	tracer      trace.Tracer
}

// New creates an executor over the given registry.
func New(registry *action.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		tracer:   otel.Tracer("pipo/executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the mutable state of one in-flight execution: the cursor and
// the accumulating output store. It exists for exactly one Execute call.
type run struct {
	id      string
	status  Status
	cursor  int
	context map[string]any
	outputs map[string]any
}

// Execute runs the plan's steps strictly in order. The plan must already
// have passed validation; Execute does not re-validate, but a structurally
// broken plan still fails safely with a Failed result rather than
// undefined behavior. The returned Result is never nil.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) *Result {
	if p == nil {
		return internalFailure(nil, "plan is nil")
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := e.tracer.Start(ctx, "Executor.Execute", trace.WithAttributes(
		attribute.String("plan.id", p.ID),
		attribute.String("plan.goal", p.Goal),
		attribute.Int("plan.steps", len(p.Steps)),
		attribute.String("run.id", runID),
	))
	defer span.End()
	log := slog.Default()

	r := &run{
		id:      runID,
		status:  StatusPending,
		context: make(map[string]any),
		outputs: make(map[string]any),
	}

	log.Info("executor.run.start",
		slog.String("plan_id", p.ID),
		slog.String("run_id", r.id),
		slog.Int("num_steps", len(p.Steps)),
	)

	r.status = StatusRunning
	for i, step := range p.Steps {
		r.cursor = i
		if err := e.executeStep(ctx, p, r, i, step); err != nil {
			r.status = StatusFailed
			log.Error("executor.run.failed",
				slog.String("plan_id", p.ID),
				slog.String("run_id", r.id),
				slog.Int("failed_step", i+1),
				slog.String("error", err.Error()),
			)
			return failedResult(p, r, i, err)
		}
	}
	r.status = StatusCompleted

	summary, err := e.summarize(ctx, p, r)
	if err != nil {
		// A configured summarizer that fails fails the run; the step
		// outputs are preserved.
		log.Error("executor.summary.error",
			slog.String("plan_id", p.ID),
			slog.String("run_id", r.id),
			slog.String("error", err.Error()),
		)
		return &Result{
			Summary:    "Plan execution failed",
			RawOutputs: r.outputs,
			Error:      perrors.New(perrors.CodeLLMError, "summary generation failed", err).Error(),
			Metadata: map[string]any{
				"goal":            p.Goal,
				"completed_steps": len(p.Steps),
			},
		}
	}

	log.Info("executor.run.complete",
		slog.String("plan_id", p.ID),
		slog.String("run_id", r.id),
		slog.Int("num_steps", len(p.Steps)),
	)
	return &Result{
		Summary:    summary,
		RawOutputs: r.outputs,
		Metadata: map[string]any{
			"goal":      p.Goal,
			"num_steps": len(p.Steps),
		},
	}
}

// executeStep resolves, binds, and runs one step, committing its output to
// the run's context on success.
func (e *Executor) executeStep(ctx context.Context, p *plan.Plan, r *run, index int, step plan.Step) error {
	stepCtx, span := e.tracer.Start(ctx, "Executor.Step", trace.WithAttributes(
		attribute.Int("step.index", index+1),
		attribute.String("step.action", step.Action),
		attribute.String("step.output_key", step.OutputKey),
	))
	defer span.End()

	started := time.Now().UTC()
	e.audit(ctx, AuditEvent{
		PlanID:    p.ID,
		RunID:     r.id,
		StepIndex: index + 1,
		Action:    step.Action,
		Status:    "started",
		StartedAt: started,
	})

	act, err := e.registry.Lookup(step.Action)
	if err != nil {
		// Validation guarantees this cannot happen; reaching it means the
		// caller skipped validation. Fail loudly and distinguishably.
		ierr := perrors.New(perrors.CodeInternal, "step action not in registry after validation", err).
			WithContext("action", step.Action).
			WithContext("step", index+1)
		e.auditFailure(ctx, p, r, index, step, started, ierr)
		return ierr
	}

	params, err := e.bindParams(act.Spec(), r, index, step)
	if err != nil {
		e.auditFailure(ctx, p, r, index, step, started, err)
		return err
	}

	output, err := e.runAction(stepCtx, act, params)
	if err != nil {
		eerr := perrors.New(perrors.CodeExecution, "action execution failed", err).
			WithContext("action", step.Action).
			WithContext("step", index+1).
			WithAttribute("action.name", step.Action).
			WithRecoverable(true)
		e.auditFailure(ctx, p, r, index, step, started, eerr)
		return eerr
	}

	// Commit the output before the next step may start.
	if step.OutputKey != "" {
		r.context[step.OutputKey] = output
		r.outputs[fmt.Sprintf("step_%d", index+1)] = output
	}

	e.audit(ctx, AuditEvent{
		PlanID:     p.ID,
		RunID:      r.id,
		StepIndex:  index + 1,
		Action:     step.Action,
		Status:     "completed",
		Output:     output,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	return nil
}

// bindParams resolves the step's bound parameters: declared defaults first,
// then literal args, then data-flow reads from the run context. A missing
// context key here is a contract violation by the caller, not a normal
// failure path.
// runAction executes one action with the configured timeout and retry
// wrappers applied, innermost first: each attempt gets its own timeout.
func (e *Executor) runAction(ctx context.Context, act action.Action, params action.Params) (any, error) {
	attempt := func() (any, error) {
		return resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: e.stepTimeout},
			func(ctx context.Context) (any, error) {
				return act.Execute(ctx, params)
			})
	}
	if e.retry == nil {
		return attempt()
	}
	return e.retry.DoWithResult(ctx, attempt)
}

func (e *Executor) bindParams(spec action.Spec, r *run, index int, step plan.Step) (action.Params, error) {
	params := make(action.Params)
	for _, p := range spec.Params {
		if p.Default != nil {
			params[p.Name] = p.Default
		}
	}
	for name, value := range step.Args {
		params[name] = value
	}
	for name, source := range step.InputMapping {
		value, ok := r.context[source]
		if !ok {
			return nil, perrors.New(perrors.CodeInternal, "execution context missing output key", nil).
				WithContext("output_key", source).
				WithContext("param", name).
				WithContext("step", index+1)
		}
		params[name] = value
	}
	return params, nil
}

func (e *Executor) summarize(ctx context.Context, p *plan.Plan, r *run) (any, error) {
	if e.summarizer == nil {
		return "", nil
	}
	return e.summarizer.Summarize(ctx, p.Goal, r.outputs)
}

func (e *Executor) audit(ctx context.Context, event AuditEvent) {
	if e.auditStore != nil {
		if err := e.auditStore.Record(ctx, event); err != nil {
			slog.Default().Warn("executor.audit.record_error",
				slog.String("plan_id", event.PlanID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.auditHook != nil {
		e.auditHook(ctx, event)
	}
}

func (e *Executor) auditFailure(ctx context.Context, p *plan.Plan, r *run, index int, step plan.Step, started time.Time, err error) {
	e.audit(ctx, AuditEvent{
		PlanID:     p.ID,
		RunID:      r.id,
		StepIndex:  index + 1,
		Action:     step.Action,
		Status:     "failed",
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
}

// failedResult builds the Failed result for a run stopped at index. Partial
// outputs from completed steps are preserved; failed_step is 1-based.
func failedResult(p *plan.Plan, r *run, index int, err error) *Result {
	meta := map[string]any{
		"goal":            p.Goal,
		"failed_step":     index + 1,
		"completed_steps": index,
	}
	if pe := perrors.AsPipoError(err); pe.Code == perrors.CodeInternal {
		meta["internal"] = true
	}
	return &Result{
		Summary:    "Plan execution failed",
		RawOutputs: r.outputs,
		Error:      err.Error(),
		Metadata:   meta,
	}
}

func internalFailure(p *plan.Plan, msg string) *Result {
	meta := map[string]any{"internal": true}
	if p != nil {
		meta["goal"] = p.Goal
	}
	return &Result{
		Summary:    "Plan execution failed",
		RawOutputs: map[string]any{},
		Error:      perrors.New(perrors.CodeInternal, msg, nil).Error(),
		Metadata:   meta,
	}
}
