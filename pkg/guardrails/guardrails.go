// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails screens request text before it reaches the planner and
// scrubs result summaries before they are returned to the caller.
//
// Screens run on the raw request: a blocked request never produces a plan.
// Scrubbers run on the final summary text and may mask or remove sensitive
// fragments without failing the request.
//
// Example usage:
//
//	guard := guardrails.New(
//	    guardrails.WithInjectionScreen(),
//	    guardrails.WithPIIScrubber(guardrails.PIIMask),
//	    guardrails.WithTopicScreen(guardrails.TopicDangerous, guardrails.TopicMalware),
//	)
//
//	verdict := guard.ScreenRequest(ctx, requestText)
//	if !verdict.Allowed {
//	    return verdict.Reason
//	}
package guardrails

import (
	"context"
	"sync"
)

// Verdict is the outcome of screening a request.
type Verdict struct {
	// Allowed is false when the request must not proceed to planning.
	Allowed bool

	// Reason explains the refusal (empty when allowed).
	Reason string

	// Source names the screen that refused the request.
	Source string

	// Confidence is the detection confidence in [0, 1].
	Confidence float64

	// Details carries screen-specific context.
	Details map[string]any
}

// ScrubResult is the outcome of scrubbing output text.
type ScrubResult struct {
	// Text is the possibly modified output.
	Text string

	// Changed reports whether any scrubber altered the text.
	Changed bool

	// Redactions lists what was masked or removed.
	Redactions []Redaction
}

// Redaction describes one scrubbed fragment.
type Redaction struct {
	// Kind categorizes the redaction (e.g. "pii:email").
	Kind string

	// Replacement is the text that stands in for the original.
	Replacement string

	// Position is the character offset in the text the scrubber received.
	Position int
}

// RequestScreen inspects request text before planning.
type RequestScreen interface {
	// Screen examines the request and decides whether it may proceed.
	Screen(ctx context.Context, text string) Verdict

	// Name identifies the screen in verdicts and logs.
	Name() string
}

// OutputScrubber rewrites summary text before it is returned.
type OutputScrubber interface {
	// Scrub processes the text and reports any modifications.
	Scrub(ctx context.Context, text string) ScrubResult

	// Name identifies the scrubber.
	Name() string
}

// Pipeline runs screens and scrubbers in registration order.
type Pipeline struct {
	mu        sync.RWMutex
	screens   []RequestScreen
	scrubbers []OutputScrubber
	failOpen  bool
}

// Option configures the pipeline.
type Option func(*Pipeline)

// New builds a pipeline. With no options it allows everything.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithScreen appends a request screen.
func WithScreen(s RequestScreen) Option {
	return func(p *Pipeline) {
		p.screens = append(p.screens, s)
	}
}

// WithScrubber appends an output scrubber.
func WithScrubber(s OutputScrubber) Option {
	return func(p *Pipeline) {
		p.scrubbers = append(p.scrubbers, s)
	}
}

// WithFailOpen lets requests through when screening is cancelled.
// The default refuses the request on cancellation.
func WithFailOpen(failOpen bool) Option {
	return func(p *Pipeline) {
		p.failOpen = failOpen
	}
}

// ScreenRequest runs every screen and returns the first refusal.
func (p *Pipeline) ScreenRequest(ctx context.Context, text string) Verdict {
	p.mu.RLock()
	screens := p.screens
	p.mu.RUnlock()

	for _, screen := range screens {
		select {
		case <-ctx.Done():
			if p.failOpen {
				return Verdict{Allowed: true}
			}
			return Verdict{
				Allowed: false,
				Reason:  "request screening cancelled",
				Source:  "pipeline",
			}
		default:
		}

		verdict := screen.Screen(ctx, text)
		if !verdict.Allowed {
			if verdict.Source == "" {
				verdict.Source = screen.Name()
			}
			return verdict
		}
	}

	return Verdict{Allowed: true}
}

// ScrubOutput chains every scrubber over the text.
func (p *Pipeline) ScrubOutput(ctx context.Context, text string) ScrubResult {
	p.mu.RLock()
	scrubbers := p.scrubbers
	p.mu.RUnlock()

	result := ScrubResult{Text: text}
	for _, scrubber := range scrubbers {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		out := scrubber.Scrub(ctx, result.Text)
		if out.Changed {
			result.Text = out.Text
			result.Changed = true
			result.Redactions = append(result.Redactions, out.Redactions...)
		}
	}
	return result
}

// AddScreen appends a screen at runtime.
func (p *Pipeline) AddScreen(s RequestScreen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screens = append(p.screens, s)
}

// AddScrubber appends a scrubber at runtime.
func (p *Pipeline) AddScrubber(s OutputScrubber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrubbers = append(p.scrubbers, s)
}

// RemoveScreen removes a screen by name.
func (p *Pipeline) RemoveScreen(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.screens {
		if s.Name() == name {
			p.screens = append(p.screens[:i], p.screens[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveScrubber removes a scrubber by name.
func (p *Pipeline) RemoveScrubber(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.scrubbers {
		if s.Name() == name {
			p.scrubbers = append(p.scrubbers[:i], p.scrubbers[i+1:]...)
			return true
		}
	}
	return false
}

// Size reports how many screens and scrubbers are installed.
func (p *Pipeline) Size() (screens, scrubbers int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.screens), len(p.scrubbers)
}
