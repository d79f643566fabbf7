// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// ErrorMetrics tracks error rates, run outcomes and recovery patterns.
type ErrorMetrics struct {
	// errorCounter tracks total errors by code and component
	errorCounter metric.Int64Counter

	// recoveryCounter tracks successful recoveries
	recoveryCounter metric.Int64Counter

	// runCounter tracks plan runs by outcome
	runCounter metric.Int64Counter

	// stepCounter tracks executed steps by action and outcome
	stepCounter metric.Int64Counter

	mu sync.RWMutex
}

// NewErrorMetrics creates a new metrics tracker with OTEL meters.
func NewErrorMetrics(ctx context.Context) (*ErrorMetrics, error) {
	meter := otel.Meter("pipo/metrics")

	errorCounter, err := meter.Int64Counter(
		"pipo.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	recoveryCounter, err := meter.Int64Counter(
		"pipo.errors.recovered",
		metric.WithDescription("Successful error recoveries by code"),
	)
	if err != nil {
		return nil, err
	}

	runCounter, err := meter.Int64Counter(
		"pipo.runs.total",
		metric.WithDescription("Plan runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	stepCounter, err := meter.Int64Counter(
		"pipo.steps.total",
		metric.WithDescription("Executed steps by action and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &ErrorMetrics{
		errorCounter:    errorCounter,
		recoveryCounter: recoveryCounter,
		runCounter:      runCounter,
		stepCounter:     stepCounter,
	}, nil
}

// RecordErrorMetric increments the error counter for the given error code
// and component.
func (em *ErrorMetrics) RecordErrorMetric(ctx context.Context, err error, component string) {
	if em == nil || err == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	if pe, ok := err.(*errors.PipoError); ok {
		em.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(pe.Code)),
				attribute.String("component", component),
				attribute.String("recoverable", pe.RecoverableString()),
			),
		)
		return
	}

	em.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", "UNKNOWN"),
			attribute.String("component", component),
			attribute.String("recoverable", "unknown"),
		),
	)
}

// RecordRecovery increments the recovery counter for the given error code.
// Called when an error is successfully handled, e.g. a retry succeeded.
func (em *ErrorMetrics) RecordRecovery(ctx context.Context, errorCode errors.ErrorCode) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.recoveryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", string(errorCode)),
		),
	)
}

// RecordRun counts one plan run with its outcome ("completed" or "failed").
func (em *ErrorMetrics) RecordRun(ctx context.Context, outcome string) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.runCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}

// RecordStep counts one executed step for the given action and outcome.
func (em *ErrorMetrics) RecordStep(ctx context.Context, actionName, outcome string) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.stepCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", actionName),
			attribute.String("outcome", outcome),
		),
	)
}
