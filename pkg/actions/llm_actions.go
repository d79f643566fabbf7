// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// AskLLM sends a single question to the shared provider and returns the
// answer verbatim.
type AskLLM struct {
	provider llm.Provider
	model    string
}

func NewAskLLM(provider llm.Provider, model string) *AskLLM {
	return &AskLLM{provider: provider, model: model}
}

func (a *AskLLM) Spec() action.Spec {
	return action.Spec{
		Name:        "ask_llm",
		Description: "Asks the language model a specific question to get information.",
		Params: []action.ParamSpec{
			{Name: "query", Type: action.ParamString, Description: "Question to ask", Required: true},
		},
	}
}

func (a *AskLLM) Execute(ctx context.Context, params action.Params) (any, error) {
	query, ok := params.String("query")
	if !ok || query == "" {
		return nil, errors.New(errors.CodeInvalidInput, "ask_llm requires a query", nil)
	}
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "ask_llm call failed", err).WithRecoverable(true)
	}
	return resp.Content, nil
}

// Entity is one named entity extracted from text.
type Entity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractEntities asks the provider for the named entities in a text and
// parses its JSON answer.
type ExtractEntities struct {
	provider llm.Provider
	model    string
}

func NewExtractEntities(provider llm.Provider, model string) *ExtractEntities {
	return &ExtractEntities{provider: provider, model: model}
}

func (a *ExtractEntities) Spec() action.Spec {
	return action.Spec{
		Name:        "extract_entities",
		Description: "Extracts named entities (people, organizations, locations) from text.",
		Params: []action.ParamSpec{
			{Name: "text", Type: action.ParamString, Description: "Text to extract entities from", Required: true},
		},
	}
}

const extractEntitiesSystem = `You are a named entity extractor. Given a text, return ONLY a JSON array of objects with "type" and "text" fields. Types are PERSON, ORG, LOC or MISC. Return [] when no entities are found.`

func (a *ExtractEntities) Execute(ctx context.Context, params action.Params) (any, error) {
	text, ok := params.String("text")
	if !ok || text == "" {
		return nil, errors.New(errors.CodeInvalidInput, "extract_entities requires text", nil)
	}
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractEntitiesSystem},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "extract_entities call failed", err).WithRecoverable(true)
	}

	var entities []Entity
	if err := json.Unmarshal([]byte(StripCodeFences(resp.Content)), &entities); err != nil {
		return nil, errors.New(errors.CodeLLMError, "entity response is not valid JSON", err).
			WithContext("response", resp.Content)
	}
	// Downstream steps consume generic values, not package types.
	out := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, map[string]any{"type": e.Type, "text": e.Text})
	}
	return out, nil
}

// GenerateReport turns gathered content into a prose report.
type GenerateReport struct {
	provider llm.Provider
	model    string
}

func NewGenerateReport(provider llm.Provider, model string) *GenerateReport {
	return &GenerateReport{provider: provider, model: model}
}

func (a *GenerateReport) Spec() action.Spec {
	return action.Spec{
		Name:        "generate_report",
		Description: "Generates a written report from the provided content.",
		Params: []action.ParamSpec{
			{Name: "content", Type: action.ParamString, Description: "Content to include in the report", Required: true},
			{Name: "style", Type: action.ParamString, Description: "Report style (formal/casual)", Default: "formal"},
		},
	}
}

func (a *GenerateReport) Execute(ctx context.Context, params action.Params) (any, error) {
	content, ok := params["content"]
	if !ok {
		return nil, errors.New(errors.CodeInvalidInput, "generate_report requires content", nil)
	}
	style, ok := params.String("style")
	if !ok || style == "" {
		style = "formal"
	}

	prompt := fmt.Sprintf("Write a %s report based on the following material:\n\n%v", style, content)
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "generate_report call failed", err).WithRecoverable(true)
	}
	return resp.Content, nil
}

// StripCodeFences removes a surrounding markdown code fence, if present.
// Models frequently wrap JSON answers in ```json blocks.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.Index(trimmed, "\n"); i >= 0 {
		// Drop the language tag on the opening fence.
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
