// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
)

// LLMProposer asks the model for a plan as JSON and parses it leniently.
// Structural soundness is the validator's job, not the proposer's.
type LLMProposer struct {
	provider llm.Provider
	model    string
}

func NewLLMProposer(provider llm.Provider, model string) *LLMProposer {
	return &LLMProposer{provider: provider, model: model}
}

const proposePlanSystem = `You are a planner. Given a goal and a catalog of available actions, produce a step-by-step plan using ONLY those actions.

Respond with ONLY a JSON object matching this schema:
{
  "goal": "the goal being planned for",
  "steps": [
    {
      "action": "action name from the catalog",
      "description": "what this step does",
      "args": {"param": "literal value"},
      "input_mapping": {"param": "output_key of an earlier step"},
      "output_key": "key to store this step's output under, or omit"
    }
  ]
}

Rules:
- Every input_mapping source must be the output_key of a strictly earlier step.
- Every required parameter of an action must be bound through args or input_mapping.
- Output keys must be unique across the plan.`

func (p *LLMProposer) Propose(ctx context.Context, req *Request, catalog string) (*plan.Plan, error) {
	if req == nil || strings.TrimSpace(req.Goal) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "proposer requires a request with a goal", nil)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", req.Goal)
	if len(req.Context) > 0 {
		if data, err := json.Marshal(req.Context); err == nil {
			fmt.Fprintf(&b, "Context: %s\n", data)
		}
	}
	b.WriteString("\nAvailable Actions:\n\n")
	b.WriteString(catalog)

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: proposePlanSystem},
			{Role: llm.RoleUser, Content: b.String()},
		},
		ForceJSON: true,
	})
	if err != nil {
		return nil, WrapLLMError(err, p.model)
	}

	proposed, err := plan.ParseJSON([]byte(stripCodeFences(resp.Content)))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "plan response is not a valid plan", err).
			WithContext("response", resp.Content)
	}
	return proposed, nil
}
