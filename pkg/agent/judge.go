// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// LLMJudge reviews a structurally valid plan for semantic fit with the goal.
// It satisfies plan.Judge.
type LLMJudge struct {
	provider llm.Provider
	model    string
}

func NewLLMJudge(provider llm.Provider, model string) *LLMJudge {
	return &LLMJudge{provider: provider, model: model}
}

const judgePlanSystem = `You review execution plans. Given a goal and a plan, decide whether the plan is a reasonable approach to the goal.

Respond with ONLY a JSON object:
{"reasonable": true or false, "reason": "one sentence explaining the verdict"}`

func (j *LLMJudge) Review(ctx context.Context, goal, planDescription string) (bool, string, error) {
	resp, err := j.provider.Chat(ctx, llm.ChatRequest{
		Model: j.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: judgePlanSystem},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Goal: %s\n\n%s", goal, planDescription)},
		},
		ForceJSON: true,
	})
	if err != nil {
		return false, "", WrapLLMError(err, j.model)
	}

	var verdict struct {
		Reasonable bool   `json:"reasonable"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &verdict); err != nil {
		return false, "", errors.New(errors.CodeLLMError, "judge response is not valid JSON", err).
			WithContext("response", resp.Content)
	}
	return verdict.Reasonable, verdict.Reason, nil
}
