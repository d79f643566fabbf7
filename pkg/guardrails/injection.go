// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// InjectionScreen flags requests that try to steer the planner off its
// instructions. Detection is pattern based.
type InjectionScreen struct {
	patterns  []*regexp.Regexp
	threshold float64
	strict    bool
}

// InjectionOption configures the injection screen.
type InjectionOption func(*InjectionScreen)

var defaultInjectionPatterns = []string{
	// Instruction override attempts
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
	`(?i)forget\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
	`(?i)override\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,

	// Persona manipulation
	`(?i)you\s+are\s+now\s+(a|an)\s+`,
	`(?i)pretend\s+(you\s+are|to\s+be)\s+`,
	`(?i)roleplay\s+as\s+`,
	`(?i)switch\s+to\s+.*\s+mode`,

	// System prompt extraction
	`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?)`,
	`(?i)show\s+me\s+your\s+(system\s+)?(prompt|instructions?)`,
	`(?i)reveal\s+your\s+(system\s+)?(prompt|instructions?)`,
	`(?i)print\s+your\s+(system\s+)?(prompt|instructions?)`,

	// Jailbreak attempts
	`(?i)do\s+anything\s+now`,
	`(?i)DAN\s+mode`,
	`(?i)jailbreak`,
	`(?i)bypass\s+(safety|content|filter)`,

	// Debug mode attempts
	`(?i)developer\s+mode`,
	`(?i)debug\s+mode`,
	`(?i)sudo\s+mode`,
	`(?i)admin\s+mode`,

	// Delimiter manipulation
	`(?i)\]\]\s*system\s*:`,
	`(?i)<\|.*\|>`,
	`(?i)\[INST\]`,
	`(?i)<<SYS>>`,
}

// NewInjectionScreen builds the screen with the default pattern set.
func NewInjectionScreen(opts ...InjectionOption) *InjectionScreen {
	s := &InjectionScreen{
		patterns: make([]*regexp.Regexp, 0, len(defaultInjectionPatterns)),
	}
	for _, pattern := range defaultInjectionPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			s.patterns = append(s.patterns, re)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithInjectionPatterns adds custom patterns. Invalid patterns are skipped.
func WithInjectionPatterns(patterns []string) InjectionOption {
	return func(s *InjectionScreen) {
		for _, pattern := range patterns {
			if re, err := regexp.Compile(pattern); err == nil {
				s.patterns = append(s.patterns, re)
			}
		}
	}
}

// WithInjectionThreshold sets the minimum confidence needed to refuse.
func WithInjectionThreshold(threshold float64) InjectionOption {
	return func(s *InjectionScreen) {
		if threshold >= 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithStrictInjection refuses on the first matching pattern.
func WithStrictInjection(strict bool) InjectionOption {
	return func(s *InjectionScreen) {
		s.strict = strict
	}
}

func (s *InjectionScreen) Name() string {
	return "prompt-injection"
}

// Screen checks the request against every pattern. Confidence grows with
// the number of matches.
func (s *InjectionScreen) Screen(ctx context.Context, text string) Verdict {
	if text == "" {
		return Verdict{Allowed: true}
	}

	normalized := strings.ToLower(text)
	var matched []string

	for _, pattern := range s.patterns {
		select {
		case <-ctx.Done():
			return Verdict{Allowed: true}
		default:
		}

		if !pattern.MatchString(normalized) {
			continue
		}
		matched = append(matched, pattern.String())

		if s.strict {
			return Verdict{
				Allowed:    false,
				Reason:     "potential prompt injection detected",
				Source:     s.Name(),
				Confidence: 1.0,
				Details:    map[string]any{"matched_patterns": matched},
			}
		}
	}

	if len(matched) == 0 {
		return Verdict{Allowed: true}
	}

	confidence := 0.7 + float64(len(matched)-1)*0.1
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < s.threshold {
		return Verdict{Allowed: true}
	}

	return Verdict{
		Allowed:    false,
		Reason:     "potential prompt injection detected",
		Source:     s.Name(),
		Confidence: confidence,
		Details: map[string]any{
			"matched_patterns": matched,
			"match_count":      len(matched),
		},
	}
}

// WithInjectionScreen installs injection detection into the pipeline.
func WithInjectionScreen(opts ...InjectionOption) Option {
	return func(p *Pipeline) {
		p.screens = append(p.screens, NewInjectionScreen(opts...))
	}
}
