// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// Request is the structured form of a user's raw text.
type Request struct {
	Goal     string         `json:"goal"`
	Context  map[string]any `json:"context,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// shortRequestLimit bounds the heuristic: single-line text up to this length
// is taken as the goal verbatim, skipping an LLM round trip.
const shortRequestLimit = 200

// LLMRequestParser extracts a structured Request from raw text. Short
// single-line requests skip the model entirely.
type LLMRequestParser struct {
	provider llm.Provider
	model    string
}

func NewLLMRequestParser(provider llm.Provider, model string) *LLMRequestParser {
	return &LLMRequestParser{provider: provider, model: model}
}

const parseRequestSystem = `You turn a raw user request into a structured object. Respond with ONLY a JSON object matching this schema:
{
  "goal": "the primary objective as one sentence",
  "context": {},
  "metadata": {}
}`

func (p *LLMRequestParser) Parse(ctx context.Context, text string) (*Request, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New(errors.CodeInvalidInput, "request text is empty", nil)
	}
	if len(trimmed) <= shortRequestLimit && !strings.Contains(trimmed, "\n") {
		return &Request{Goal: trimmed}, nil
	}

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: parseRequestSystem},
			{Role: llm.RoleUser, Content: trimmed},
		},
		ForceJSON: true,
	})
	if err != nil {
		return nil, WrapLLMError(err, p.model)
	}

	var req Request
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &req); err != nil {
		return nil, errors.New(errors.CodeLLMError, "request parse response is not valid JSON", err).
			WithContext("response", resp.Content)
	}
	if strings.TrimSpace(req.Goal) == "" {
		return nil, errors.New(errors.CodeLLMError, "request parse produced no goal", nil).
			WithContext("response", resp.Content)
	}
	return &req, nil
}

// stripCodeFences removes a surrounding markdown code fence, if present.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.Index(trimmed, "\n"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
