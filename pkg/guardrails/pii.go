// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
)

// PIIMode selects how detected PII is rewritten.
type PIIMode int

const (
	// PIIMask replaces PII with a typed placeholder such as "[EMAIL]".
	PIIMask PIIMode = iota
	// PIIDrop removes PII entirely.
	PIIDrop
	// PIIHash replaces PII with a stable hash so records stay correlatable.
	PIIHash
)

// PIIKind categorizes detected PII.
type PIIKind string

const (
	PIIEmail      PIIKind = "email"
	PIIPhone      PIIKind = "phone"
	PIISSN        PIIKind = "ssn"
	PIICreditCard PIIKind = "credit_card"
	PIIIPAddress  PIIKind = "ip_address"
	PIIPassport   PIIKind = "passport"
	PIIBirthDate  PIIKind = "date_of_birth"
)

type piiPattern struct {
	kind    PIIKind
	pattern *regexp.Regexp
	mask    string
}

// PIIScrubber masks, drops, or hashes PII in output text. It also works as
// a request screen for deployments that must refuse PII outright.
type PIIScrubber struct {
	mode     PIIMode
	patterns []piiPattern
	enabled  map[PIIKind]bool
}

// PIIOption configures the scrubber.
type PIIOption func(*PIIScrubber)

// Order matters: the more specific patterns come first so a card number is
// not half-consumed by the phone pattern.
var defaultPIIPatterns = []struct {
	kind    PIIKind
	pattern string
	mask    string
}{
	{PIICreditCard, `\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`, "[CREDIT_CARD]"},
	{PIICreditCard, `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`, "[CREDIT_CARD]"},

	{PIISSN, `\b[0-9]{3}[-\s]?[0-9]{2}[-\s]?[0-9]{4}\b`, "[SSN]"},

	{PIIEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL]"},

	{PIIPhone, `\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`, "[PHONE]"},
	{PIIPhone, `\+[0-9]{1,3}[-.\s]?[0-9]{6,14}`, "[PHONE]"},

	{PIIIPAddress, `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`, "[IP_ADDRESS]"},

	{PIIBirthDate, `\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01])[/-](?:19|20)[0-9]{2}\b`, "[DATE]"},
	{PIIBirthDate, `\b(?:19|20)[0-9]{2}[/-](?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01])\b`, "[DATE]"},

	{PIIPassport, `\b[A-Z]{1,2}[0-9]{6,9}\b`, "[PASSPORT]"},
}

// NewPIIScrubber builds a scrubber with all default kinds enabled.
func NewPIIScrubber(mode PIIMode, opts ...PIIOption) *PIIScrubber {
	s := &PIIScrubber{
		mode:    mode,
		enabled: make(map[PIIKind]bool),
	}
	for _, p := range defaultPIIPatterns {
		s.enabled[p.kind] = true
		if re, err := regexp.Compile(p.pattern); err == nil {
			s.patterns = append(s.patterns, piiPattern{kind: p.kind, pattern: re, mask: p.mask})
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithPIIKinds restricts scrubbing to the listed kinds.
func WithPIIKinds(kinds ...PIIKind) PIIOption {
	return func(s *PIIScrubber) {
		for k := range s.enabled {
			s.enabled[k] = false
		}
		for _, k := range kinds {
			s.enabled[k] = true
		}
	}
}

// WithoutPIIKinds disables the listed kinds.
func WithoutPIIKinds(kinds ...PIIKind) PIIOption {
	return func(s *PIIScrubber) {
		for _, k := range kinds {
			s.enabled[k] = false
		}
	}
}

// WithPIIPattern adds a custom pattern. Invalid patterns are skipped.
func WithPIIPattern(kind PIIKind, pattern, mask string) PIIOption {
	return func(s *PIIScrubber) {
		if re, err := regexp.Compile(pattern); err == nil {
			s.patterns = append(s.patterns, piiPattern{kind: kind, pattern: re, mask: mask})
			s.enabled[kind] = true
		}
	}
}

func (s *PIIScrubber) Name() string {
	return "pii"
}

// Scrub rewrites every enabled PII match in the text.
func (s *PIIScrubber) Scrub(ctx context.Context, text string) ScrubResult {
	result := ScrubResult{Text: text}
	if text == "" {
		return result
	}

	for _, p := range s.patterns {
		if !s.enabled[p.kind] {
			continue
		}

		select {
		case <-ctx.Done():
			return result
		default:
		}

		matches := p.pattern.FindAllStringIndex(result.Text, -1)
		// Rewrite back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			match := matches[i]
			original := result.Text[match[0]:match[1]]
			replacement := s.replacement(p, original)

			result.Redactions = append(result.Redactions, Redaction{
				Kind:        "pii:" + string(p.kind),
				Replacement: replacement,
				Position:    match[0],
			})
			result.Text = result.Text[:match[0]] + replacement + result.Text[match[1]:]
			result.Changed = true
		}
	}
	return result
}

func (s *PIIScrubber) replacement(p piiPattern, original string) string {
	switch s.mode {
	case PIIDrop:
		return ""
	case PIIHash:
		h := fnv.New64a()
		h.Write([]byte(original))
		return fmt.Sprintf("%s_%08X]", p.mask[:len(p.mask)-1], h.Sum64()&0xFFFFFFFF)
	default:
		return p.mask
	}
}

// Screen refuses requests containing any enabled PII kind.
func (s *PIIScrubber) Screen(ctx context.Context, text string) Verdict {
	if text == "" {
		return Verdict{Allowed: true}
	}

	for _, p := range s.patterns {
		if !s.enabled[p.kind] {
			continue
		}

		select {
		case <-ctx.Done():
			return Verdict{Allowed: true}
		default:
		}

		if p.pattern.MatchString(text) {
			return Verdict{
				Allowed:    false,
				Reason:     "request contains PII: " + string(p.kind),
				Source:     s.Name(),
				Confidence: 1.0,
				Details:    map[string]any{"pii_kind": string(p.kind)},
			}
		}
	}
	return Verdict{Allowed: true}
}

// WithPIIScrubber installs PII scrubbing on output.
func WithPIIScrubber(mode PIIMode, opts ...PIIOption) Option {
	return func(p *Pipeline) {
		p.scrubbers = append(p.scrubbers, NewPIIScrubber(mode, opts...))
	}
}

// WithPIIScreen refuses requests containing PII. The mode is irrelevant
// for screening.
func WithPIIScreen(opts ...PIIOption) Option {
	return func(p *Pipeline) {
		p.screens = append(p.screens, NewPIIScrubber(PIIMask, opts...))
	}
}
