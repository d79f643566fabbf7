// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the request orchestration loop: parse the user's
// text into a structured request, propose a plan against the action catalog,
// validate it, and execute it. ProcessRequest always returns exactly one
// Result, success or a well-described failure.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/core"
	"github.com/MagicOwO/pipo-agent/pkg/executor"
	"github.com/MagicOwO/pipo-agent/pkg/governance"
	"github.com/MagicOwO/pipo-agent/pkg/guardrails"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
	"github.com/MagicOwO/pipo-agent/pkg/telemetry"
)

// RequestParser turns raw user text into a structured Request.
type RequestParser interface {
	Parse(ctx context.Context, text string) (*Request, error)
}

// Proposer turns a structured Request into a candidate Plan using the
// action catalog description.
type Proposer interface {
	Propose(ctx context.Context, req *Request, catalog string) (*plan.Plan, error)
}

// Agent orchestrates request processing end to end.
type Agent struct {
	id         string
	provider   llm.Provider
	model      string
	registry   *action.Registry
	parser     RequestParser
	proposer   Proposer
	judge      plan.Judge
	summarizer executor.Summarizer
	auditStore executor.AuditStore
	guard      *guardrails.Pipeline
	policy     *governance.ActionPolicy
	execOpts   []executor.Option
	metrics    *ErrorMetricsIntegration
	exec       *executor.Executor
	validator  *plan.Validator
	tracer     trace.Tracer
}

var ErrMissingRegistry = errors.New("agent registry is required")
var ErrMissingProvider = errors.New("agent provider is required when parser or proposer is not set")

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent with a required id and options. A registry is
// mandatory; a provider is mandatory unless both a parser and a proposer
// are injected.
func New(id string, opts ...Option) (*Agent, error) {
	a := &Agent{id: id}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.id == "" {
		return nil, errors.New("agent id is required")
	}
	if a.registry == nil {
		return nil, ErrMissingRegistry
	}
	if a.provider == nil && (a.parser == nil || a.proposer == nil) {
		return nil, ErrMissingProvider
	}
	if a.parser == nil {
		a.parser = NewLLMRequestParser(a.provider, a.model)
	}
	if a.proposer == nil {
		a.proposer = NewLLMProposer(a.provider, a.model)
	}

	a.validator = plan.NewValidator(a.registry)
	a.validator.Judge = a.judge

	execOpts := []executor.Option{}
	if a.summarizer != nil {
		execOpts = append(execOpts, executor.WithSummarizer(a.summarizer))
	}
	if a.auditStore != nil {
		execOpts = append(execOpts, executor.WithAuditStore(a.auditStore))
	}
	execOpts = append(execOpts, a.execOpts...)
	a.exec = executor.New(a.registry, execOpts...)
	a.tracer = otel.Tracer("pipo/agent")
	return a, nil
}

// WithProvider sets the LLM provider used by default collaborators.
func WithProvider(provider llm.Provider) Option {
	return func(a *Agent) error {
		a.provider = provider
		return nil
	}
}

// WithModel sets the model name passed to the provider on every call.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithRegistry sets the action registry plans are validated and run against.
func WithRegistry(registry *action.Registry) Option {
	return func(a *Agent) error {
		a.registry = registry
		return nil
	}
}

// WithParser overrides the request parser.
func WithParser(parser RequestParser) Option {
	return func(a *Agent) error {
		a.parser = parser
		return nil
	}
}

// WithProposer overrides the plan proposer.
func WithProposer(proposer Proposer) Option {
	return func(a *Agent) error {
		a.proposer = proposer
		return nil
	}
}

// WithJudge attaches a semantic plan judge to validation.
func WithJudge(judge plan.Judge) Option {
	return func(a *Agent) error {
		a.judge = judge
		return nil
	}
}

// WithSummarizer attaches a result summarizer to execution.
func WithSummarizer(summarizer executor.Summarizer) Option {
	return func(a *Agent) error {
		a.summarizer = summarizer
		return nil
	}
}

// WithAuditStore attaches an execution audit store.
func WithAuditStore(store executor.AuditStore) Option {
	return func(a *Agent) error {
		a.auditStore = store
		return nil
	}
}

// WithGuardrails attaches request screening and output scrubbing. Screened
// requests fail before any plan is proposed.
func WithGuardrails(guard *guardrails.Pipeline) Option {
	return func(a *Agent) error {
		a.guard = guard
		return nil
	}
}

// WithPolicy attaches an action policy. Plans touching a denied action are
// rejected before execution.
func WithPolicy(policy *governance.ActionPolicy) Option {
	return func(a *Agent) error {
		a.policy = policy
		return nil
	}
}

// WithStepRetry retries recoverable step failures during execution.
func WithStepRetry(cfg resilience.RetryConfig) Option {
	return func(a *Agent) error {
		a.execOpts = append(a.execOpts, executor.WithStepRetry(cfg))
		return nil
	}
}

// WithStepTimeout bounds each step's action execution.
func WithStepTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.execOpts = append(a.execOpts, executor.WithStepTimeout(d))
		return nil
	}
}

// WithErrorMetrics attaches error metrics recording.
func WithErrorMetrics(metrics *ErrorMetricsIntegration) Option {
	return func(a *Agent) error {
		a.metrics = metrics
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// ProcessRequest processes a natural language request end to end and
// returns exactly one Result. Collaborator failures never escape as errors;
// each is folded into a Failed result naming the stage.
func (a *Agent) ProcessRequest(ctx context.Context, text string) *executor.Result {
	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := a.tracer.Start(ctx, "Agent.ProcessRequest", trace.WithAttributes(
		telemetry.AgentAttributes(a.id, a.model, runID)...,
	))
	defer span.End()

	task := core.NewTask(text, a.id)
	task.Start()
	ctx = core.WithTask(ctx, task)

	slog.InfoContext(ctx, "agent.request.start",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
	)

	if a.guard != nil {
		verdict := a.guard.ScreenRequest(ctx, text)
		if !verdict.Allowed {
			slog.WarnContext(ctx, "agent.request.refused",
				slog.String("agent_id", a.id),
				slog.String("run_id", runID),
				slog.String("screen", verdict.Source),
				slog.String("reason", verdict.Reason),
			)
			span.SetAttributes(attribute.String("pipo.guardrail.screen", verdict.Source))
			task.Reject(verdict.Reason)
			return a.finish(task, &executor.Result{
				Summary:    "Request refused",
				RawOutputs: map[string]any{},
				Error:      verdict.Reason,
				Metadata:   map[string]any{"screen": verdict.Source},
			})
		}
	}

	req, err := a.parser.Parse(ctx, text)
	if err != nil {
		a.recordError(ctx, err, "parser")
		task.Fail(err.Error())
		return a.finish(task, a.stageFailure(ctx, runID, "Request parsing failed", err))
	}
	task.Goal = req.Goal

	p, err := a.proposer.Propose(ctx, req, a.registry.Describe())
	if err != nil {
		a.recordError(ctx, err, "proposer")
		task.Fail(err.Error())
		return a.finish(task, a.stageFailure(ctx, runID, "Plan generation failed", err))
	}
	if p.Goal == "" {
		p.Goal = req.Goal
	}

	ok, reason := a.validator.Validate(ctx, p)
	span.SetAttributes(telemetry.ValidationAttributes(ok, a.judge != nil, reason)...)
	if !ok {
		slog.WarnContext(ctx, "agent.plan.rejected",
			slog.String("agent_id", a.id),
			slog.String("run_id", runID),
			slog.String("reason", reason),
		)
		task.Reject(reason)
		return a.finish(task, &executor.Result{
			Summary:    "Plan validation failed",
			RawOutputs: map[string]any{},
			Error:      reason,
			Metadata:   map[string]any{"goal": p.Goal},
		})
	}

	if a.policy != nil {
		if d := a.policy.CheckPlan(ctx, p); !d.Allowed() {
			slog.WarnContext(ctx, "agent.plan.denied",
				slog.String("agent_id", a.id),
				slog.String("run_id", runID),
				slog.String("reason", d.Reason),
			)
			span.SetAttributes(attribute.String("pipo.policy.rule", d.RuleID))
			task.Reject(d.Reason)
			return a.finish(task, &executor.Result{
				Summary:    "Plan denied by policy",
				RawOutputs: map[string]any{},
				Error:      d.Reason,
				Metadata:   map[string]any{"goal": p.Goal},
			})
		}
	}

	result := a.exec.Execute(ctx, p)
	if a.guard != nil {
		if summary, ok := result.Summary.(string); ok && summary != "" {
			scrubbed := a.guard.ScrubOutput(ctx, summary)
			if scrubbed.Changed {
				result.Summary = scrubbed.Text
				if result.Metadata == nil {
					result.Metadata = map[string]any{}
				}
				result.Metadata["redactions"] = len(scrubbed.Redactions)
			}
		}
	}
	if a.metrics != nil {
		outcome := "completed"
		if !result.Success() {
			outcome = "failed"
		}
		a.metrics.RecordRun(ctx, outcome)
	}
	if result.Success() {
		task.Complete(result.Summary)
	} else {
		task.Fail(result.Error)
	}
	slog.InfoContext(ctx, "agent.request.complete",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.Bool("success", result.Success()),
	)
	return a.finish(task, result)
}

// finish stamps the task identity onto the result's metadata.
func (a *Agent) finish(task *core.Task, result *executor.Result) *executor.Result {
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["task_id"] = task.ID
	result.Metadata["task_status"] = string(task.Status)
	return result
}

func (a *Agent) stageFailure(ctx context.Context, runID, summary string, err error) *executor.Result {
	slog.ErrorContext(ctx, "agent.request.failed",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.String("stage", summary),
		slog.String("error", err.Error()),
	)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("pipo.failure.stage", summary))
	return &executor.Result{
		Summary:    summary,
		RawOutputs: map[string]any{},
		Error:      err.Error(),
	}
}

func (a *Agent) recordError(ctx context.Context, err error, component string) {
	if a.metrics != nil {
		a.metrics.RecordError(ctx, err, component)
	}
}
