// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for the
// PIPO agent core.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies agent errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates a programming-defect-class failure, such as a
	// missing execution-context key that validation should have caught.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeRegistration indicates a duplicate action name at registry
	// population time. Fatal at startup.
	CodeRegistration ErrorCode = "REGISTRATION_ERROR"

	// CodeUnknownAction indicates a lookup of an unregistered action name.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// CodeValidation indicates a plan failed structural or semantic
	// validation before execution.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeExecution indicates an action's own failure: network, upstream
	// service error, malformed response.
	CodeExecution ErrorCode = "EXECUTION_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates rate limiting was triggered.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// PipoError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type PipoError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *PipoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *PipoError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *PipoError) MarshalJSON() ([]byte, error) {
	type Alias PipoError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new PipoError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *PipoError {
	return &PipoError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *PipoError) WithContext(key string, value interface{}) *PipoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *PipoError) WithAttribute(key, value string) *PipoError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *PipoError) WithRecoverable(recoverable bool) *PipoError {
	e.Recoverable = recoverable
	return e
}

// AsPipoError attempts to convert an error to a PipoError.
// Returns the error as PipoError if it is one, or wraps it otherwise.
func AsPipoError(err error) *PipoError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PipoError); ok {
		return pe
	}
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *PipoError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP-style status codes for
// embedding callers.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound, CodeUnknownAction:
		return 404
	case CodeInvalidInput, CodeValidation:
		return 400
	case CodeTimeout:
		return 408
	case CodeRateLimit:
		return 429
	case CodeExecution, CodeLLMError:
		return 502
	default:
		return 500
	}
}
