package executor

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the terminal record of one plan execution: exactly one Result is
// produced per run, success or a well-described failure, never a partial
// object. Immutable after construction.
type Result struct {
	// Summary is a human summary of the run, either prose or a structured
	// value, depending on the summarizer.
	Summary any `json:"summary"`

	// RawOutputs holds per-step outputs under deterministic "step_N" keys
	// (1-based), for steps that declared an output key.
	RawOutputs map[string]any `json:"raw_outputs"`

	// Error is the failure detail. Empty on success.
	Error string `json:"error,omitempty"`

	// Metadata carries execution facts: goal, num_steps on success;
	// failed_step and completed_steps on failure.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Success reports whether the execution succeeded. Derived: the error is
// absent.
func (r *Result) Success() bool {
	return r.Error == ""
}

// String returns a one-line representation of the result.
func (r *Result) String() string {
	if !r.Success() {
		return fmt.Sprintf("Error: %s", r.Error)
	}
	return fmt.Sprintf("Success: %s", summaryString(r.Summary))
}

// ToText returns a detailed natural language description of the result.
func (r *Result) ToText() string {
	if !r.Success() {
		return fmt.Sprintf("Execution failed: %s", r.Error)
	}

	var b strings.Builder
	b.WriteString("Execution completed successfully.\n")

	b.WriteString("\nSummary:\n")
	b.WriteString("  " + summaryString(r.Summary))

	if len(r.RawOutputs) > 0 {
		b.WriteString("\n\nRaw Step Outputs:")
		for _, key := range sortedOutputKeys(r.RawOutputs) {
			b.WriteString(fmt.Sprintf("\n  - %s: %s", key, truncate(fmt.Sprint(r.RawOutputs[key]), 100)))
		}
	}

	if len(r.Metadata) > 0 {
		b.WriteString("\n\nMetadata:")
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  - %s: %v", k, r.Metadata[k]))
		}
	}

	return b.String()
}

func summaryString(summary any) string {
	switch s := summary.(type) {
	case nil:
		return ""
	case string:
		return s
	case map[string]any:
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, s[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(s)
	}
}

// sortedOutputKeys orders "step_N" keys numerically by scanning for the
// shortest keys first, falling back to lexical order for equal lengths.
func sortedOutputKeys(outputs map[string]any) []string {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
