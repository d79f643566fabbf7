// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package actions bundles the built-in capability actions: web search,
// content fetching, and the LLM-backed text actions. Register what you need
// with RegisterDefaults, or register individual actions directly.
package actions

import (
	"context"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

// Deps carries the shared backends the built-in actions run against.
type Deps struct {
	// Provider backs ask_llm, extract_entities and generate_report.
	Provider llm.Provider

	// Model passed on every provider call. Empty lets the provider decide.
	Model string

	// Search backs web_search. Nil skips registering the action.
	Search SearchClient

	// Fetcher backs fetch_content. Nil uses a default readability fetcher.
	Fetcher *ContentFetcher
}

// RegisterDefaults registers every built-in action whose backend is
// available in deps. Echo is always registered.
func RegisterDefaults(reg *action.Registry, deps Deps) error {
	if err := reg.Register(Echo{}); err != nil {
		return err
	}
	if deps.Search != nil {
		if err := reg.Register(NewWebSearch(deps.Search)); err != nil {
			return err
		}
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = NewContentFetcher()
	}
	if err := reg.Register(NewFetchContent(fetcher)); err != nil {
		return err
	}
	if deps.Provider != nil {
		for _, a := range []action.Action{
			NewAskLLM(deps.Provider, deps.Model),
			NewExtractEntities(deps.Provider, deps.Model),
			NewGenerateReport(deps.Provider, deps.Model),
		} {
			if err := reg.Register(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// Echo returns its input unchanged. Used by tests and fixtures.
type Echo struct{}

func (Echo) Spec() action.Spec {
	return action.Spec{
		Name:        "echo",
		Description: "Returns the provided value unchanged.",
		Params: []action.ParamSpec{
			{Name: "value", Type: action.ParamString, Description: "Value to return", Required: true},
		},
	}
}

func (Echo) Execute(_ context.Context, params action.Params) (any, error) {
	value, ok := params["value"]
	if !ok {
		return nil, errors.New(errors.CodeInvalidInput, "echo requires a value", nil)
	}
	return value, nil
}
