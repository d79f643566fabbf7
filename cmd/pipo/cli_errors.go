// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// CLIError wraps PipoError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.PipoError
	Hint string
}

func NewCLIError(pe *errors.PipoError, hint string) *CLIError {
	return &CLIError{PipoError: pe, Hint: hint}
}

func (e *CLIError) Error() string {
	if e.PipoError == nil {
		return "unknown error"
	}
	msg := e.PipoError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(json bool) {
	if json {
		fmt.Fprintf(os.Stderr, `{"error":{"code":"%s","message":"%s","hint":"%s"}}%s`,
			e.PipoError.Code,
			e.PipoError.Message,
			e.Hint,
			"\n")
		return
	}

	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.PipoError.Code, e.PipoError.Message)
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// WrapConnectionError wraps a connection error with CLI hints.
func WrapConnectionError(err error, addr string) *CLIError {
	pe := errors.New(errors.CodeInternal, "connection failed", err).
		WithContext("address", addr).
		WithRecoverable(true)
	return NewCLIError(pe, fmt.Sprintf("check if the server is running at %s", addr))
}

// WrapTimeoutError wraps a timeout error with CLI hints.
func WrapTimeoutError(err error, operation string) *CLIError {
	pe := errors.New(errors.CodeTimeout, operation+" timed out", err).
		WithContext("operation", operation).
		WithRecoverable(true)
	return NewCLIError(pe, "try increasing timeout with --timeout flag or check server health")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	pe := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(pe, hint)
}

// NewPlanFileError creates an error for an unreadable or invalid plan file.
func NewPlanFileError(err error, path string) *CLIError {
	pe := errors.New(errors.CodeValidation, "plan file error", err).
		WithContext("path", path).
		WithRecoverable(false)
	return NewCLIError(pe, fmt.Sprintf("check that %s is valid YAML or JSON with a steps list", path))
}

// PrintSimpleError prints a plain error message for non-PipoError cases.
func PrintSimpleError(err error, json bool) {
	if json {
		fmt.Fprintf(os.Stderr, `{"error":{"code":"UNKNOWN","message":"%s"}}%s`, err.Error(), "\n")
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeUnknownAction:
		return "Unknown Action"
	case errors.CodeValidation:
		return "Validation Error"
	case errors.CodeExecution:
		return "Execution Error"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeRateLimit:
		return "Rate Limited"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeLLMError:
		return "LLM Error"
	default:
		return string(code)
	}
}
