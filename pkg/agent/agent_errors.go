// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/telemetry"
)

// ErrorMetricsIntegration wraps telemetry.ErrorMetrics with agent-specific
// helpers. A nil or disabled integration is safe to call.
type ErrorMetricsIntegration struct {
	metrics *telemetry.ErrorMetrics
	enabled bool
	mu      sync.RWMutex
}

var (
	globalErrorMetrics     *ErrorMetricsIntegration
	globalErrorMetricsOnce sync.Once
)

// InitErrorMetrics initializes the global error metrics for agents. Call
// once during application startup. Degrades gracefully when the meter
// cannot be built.
func InitErrorMetrics(ctx context.Context) *ErrorMetricsIntegration {
	globalErrorMetricsOnce.Do(func() {
		metrics, err := telemetry.NewErrorMetrics(ctx)
		if err != nil {
			globalErrorMetrics = &ErrorMetricsIntegration{enabled: false}
			return
		}
		globalErrorMetrics = &ErrorMetricsIntegration{
			metrics: metrics,
			enabled: true,
		}
	})
	return globalErrorMetrics
}

// GetErrorMetrics returns the global error metrics integration, or nil when
// not initialized.
func GetErrorMetrics() *ErrorMetricsIntegration {
	return globalErrorMetrics
}

// RecordError records an error metric with its code and component.
func (e *ErrorMetricsIntegration) RecordError(ctx context.Context, err error, component string) {
	if e == nil || !e.enabled || e.metrics == nil {
		return
	}
	e.metrics.RecordErrorMetric(ctx, err, component)
}

// RecordRecovery records a successful recovery for the given error code.
func (e *ErrorMetricsIntegration) RecordRecovery(ctx context.Context, code errors.ErrorCode) {
	if e == nil || !e.enabled || e.metrics == nil {
		return
	}
	e.metrics.RecordRecovery(ctx, code)
}

// RecordRun records one plan run outcome.
func (e *ErrorMetricsIntegration) RecordRun(ctx context.Context, outcome string) {
	if e == nil || !e.enabled || e.metrics == nil {
		return
	}
	e.metrics.RecordRun(ctx, outcome)
}

// WrapLLMError wraps an LLM error with appropriate context.
func WrapLLMError(err error, model string) *errors.PipoError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("gen_ai.request.model", model).
		WithRecoverable(true)
}

// WrapActionError wraps an action execution error with appropriate context.
func WrapActionError(err error, actionName string) *errors.PipoError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeExecution, "action execution failed", err).
		WithContext("action", actionName).
		WithAttribute("pipo.step.action", actionName).
		WithRecoverable(true)
}

// WrapValidationError wraps a plan rejection with its reason.
func WrapValidationError(reason, planID string) *errors.PipoError {
	return errors.New(errors.CodeValidation, reason, nil).
		WithContext("plan_id", planID).
		WithRecoverable(false)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.PipoError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}
