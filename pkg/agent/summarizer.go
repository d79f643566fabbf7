// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// LLMSummarizer produces the prose summary of a completed run. It satisfies
// executor.Summarizer.
type LLMSummarizer struct {
	provider llm.Provider
	model    string
}

func NewLLMSummarizer(provider llm.Provider, model string) *LLMSummarizer {
	return &LLMSummarizer{provider: provider, model: model}
}

const summarizeSystem = `You summarize the results of an executed plan. Write a short, direct summary of what was accomplished based on the goal and the step outputs. Respond with prose only.`

func (s *LLMSummarizer) Summarize(ctx context.Context, goal string, outputs map[string]any) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nOutputs:\n", goal)
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, outputs[k])
	}

	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarizeSystem},
			{Role: llm.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", WrapLLMError(err, s.model)
	}
	return strings.TrimSpace(resp.Content), nil
}
