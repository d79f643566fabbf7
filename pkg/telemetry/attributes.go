// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for agent telemetry. LLM attributes follow the
// standard gen_ai conventions; everything else lives under pipo.*.
const (
	// Agent attributes
	AttrAgentID    = "pipo.agent.id"
	AttrAgentModel = "pipo.agent.model"
	AttrRunID      = "pipo.run.id"

	// Plan attributes
	AttrPlanID    = "pipo.plan.id"
	AttrPlanGoal  = "pipo.plan.goal"
	AttrPlanSteps = "pipo.plan.steps"

	// Step attributes
	AttrStepIndex  = "pipo.step.index"
	AttrStepAction = "pipo.step.action"
	AttrStepOutput = "pipo.step.output_key"

	// Validation attributes
	AttrValidationOK     = "pipo.validation.ok"
	AttrValidationReason = "pipo.validation.reason"
	AttrJudgeEnabled     = "pipo.judge.enabled"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
)

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(agentID, model, runID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	return attrs
}

// PlanAttributes returns attributes describing a plan.
func PlanAttributes(planID, goal string, steps int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPlanID, planID),
		attribute.Int(AttrPlanSteps, steps),
	}
	if goal != "" {
		if len(goal) > 200 {
			goal = goal[:200] + "..."
		}
		attrs = append(attrs, attribute.String(AttrPlanGoal, goal))
	}
	return attrs
}

// StepAttributes returns attributes for one step span. Index is 1-based.
func StepAttributes(index int, actionName, outputKey string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrStepIndex, index),
		attribute.String(AttrStepAction, actionName),
	}
	if outputKey != "" {
		attrs = append(attrs, attribute.String(AttrStepOutput, outputKey))
	}
	return attrs
}

// ValidationAttributes returns attributes for a validation span.
func ValidationAttributes(ok, judgeEnabled bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrValidationOK, ok),
		attribute.Bool(AttrJudgeEnabled, judgeEnabled),
	}
	if reason != "" {
		if len(reason) > 500 {
			reason = reason[:500] + "..."
		}
		attrs = append(attrs, attribute.String(AttrValidationReason, reason))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}
