// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides retry and timeout boundaries for action
// execution. Timeout semantics live inside the actions themselves; the
// executor never imposes deadlines on steps.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// IsRecoverable determines if an error should be retried.
	// If nil, all errors are considered recoverable.
	IsRecoverable func(error) bool

	// Jitter adds randomness to backoff to prevent thundering herd.
	// Value between 0 and 1; 0.1 means ±10% jitter.
	Jitter float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: recoverableByClassification,
	}
}

// WithMaxAttempts returns a new config with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

// WithInitialDelay returns a new config with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithMaxDelay returns a new config with MaxDelay set.
func (rc RetryConfig) WithMaxDelay(d time.Duration) RetryConfig {
	rc.MaxDelay = d
	return rc
}

// WithIsRecoverable returns a new config with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// Do executes fn, retrying recoverable failures with exponential backoff
// until an attempt succeeds, an unrecoverable error occurs, the context is
// canceled, or MaxAttempts is reached. The last error is returned on
// exhaustion.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = recoverableByClassification
	}
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	delay := rc.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithJitter(ctx, delay, rc.Jitter); err != nil {
				return errors.New(errors.CodeExecution, "context canceled during retry", err).
					WithContext("attempt", attempt-1).
					WithContext("max_attempts", attempts)
			}
			delay = time.Duration(float64(delay) * multiplier)
			if rc.MaxDelay > 0 && delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !recoverable(err) {
			return err
		}
	}
	return lastErr
}

// DoWithResult executes fn with retry logic, returning both result and error.
func (rc RetryConfig) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var result any
	err := rc.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// sleepWithJitter waits for d plus or minus the jitter fraction, returning
// early with the context error on cancellation.
func sleepWithJitter(ctx context.Context, d time.Duration, jitter float64) error {
	if jitter > 0 {
		spread := float64(d) * jitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
		if d < 0 {
			d = 0
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recoverableByClassification retries errors that carry no classification
// and honors the Recoverable flag on classified ones.
func recoverableByClassification(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*errors.PipoError); ok {
		return pe.Recoverable
	}
	return true
}
