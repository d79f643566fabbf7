// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/actions"
	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
	"github.com/MagicOwO/pipo-agent/pkg/plan"
)

type graphResult struct {
	Format  string `json:"format"`
	PlanID  string `json:"plan_id,omitempty"`
	Goal    string `json:"goal,omitempty"`
	Steps   int    `json:"steps"`
	Content string `json:"content"`
}

type planCheckResult struct {
	Path   string `json:"path"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Steps  int    `json:"steps"`
}

func runPlanCmd(ctx context.Context, flags globalFlags, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: pipo plan <validate|explain|graph> --path <file>"))
	}

	switch args[0] {
	case "validate":
		runPlanValidate(ctx, flags, args[1:])
	case "explain":
		runPlanExplain(flags, args[1:])
	case "graph":
		runPlanGraph(flags, args[1:])
	default:
		fatal(fmt.Errorf("unknown plan subcommand %q; use validate, explain, or graph", args[0]))
	}
}

func runPlanValidate(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("plan validate", flag.ExitOnError)
	path := cmd.String("path", "", "Path to plan YAML/JSON file")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	p := loadPlanFile(*path, flags.JSON)

	reg, err := buildCatalog(flags.ConfigPath)
	if err != nil {
		fatal(err)
	}

	ok, reason := plan.NewValidator(reg).Validate(ctx, p)
	result := planCheckResult{Path: *path, Valid: ok, Reason: reason, Steps: len(p.Steps)}

	if flags.JSON {
		printJSON(result)
	} else if ok {
		fmt.Printf("✓ plan is valid (%d steps)\n", len(p.Steps))
	} else {
		fmt.Fprintf(os.Stderr, "✗ plan is invalid: %s\n", reason)
	}
	if !ok {
		os.Exit(1)
	}
}

func runPlanExplain(flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("plan explain", flag.ExitOnError)
	path := cmd.String("path", "", "Path to plan YAML/JSON file")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	p := loadPlanFile(*path, flags.JSON)

	if flags.JSON {
		printJSON(map[string]any{"plan": p, "description": p.Describe()})
		return
	}
	fmt.Println(p.Describe())
}

func runPlanGraph(flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("plan graph", flag.ExitOnError)
	path := cmd.String("path", "", "Path to plan YAML/JSON file")
	output := cmd.String("output", "mermaid", "Output format: mermaid, dot, json")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	p := loadPlanFile(*path, flags.JSON)

	result := graphResult{Format: *output, PlanID: p.ID, Goal: p.Goal, Steps: len(p.Steps)}

	switch *output {
	case "mermaid":
		result.Content = plan.Mermaid(p)
	case "dot":
		result.Content = plan.DOT(p)
	case "json":
		data, err := plan.MarshalJSON(p, true)
		if err != nil {
			fatal(err)
		}
		result.Content = string(data)
	default:
		fatal(fmt.Errorf("unknown output format %q; use mermaid, dot, or json", *output))
	}

	if flags.JSON {
		printJSON(result)
		return
	}
	fmt.Println(result.Content)
}

func loadPlanFile(path string, jsonOutput bool) *plan.Plan {
	if path == "" {
		fatal(fmt.Errorf("no plan file specified; use --path <file>"))
	}
	p, err := plan.Load(path)
	if err != nil {
		NewPlanFileError(err, path).PrintError(jsonOutput)
		os.Exit(1)
	}
	return p
}

// buildCatalog builds the action registry offline, without connecting to
// any LLM or MCP server, so plan validation works without a backend.
func buildCatalog(configPath string) (*action.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	reg := action.NewRegistry()
	deps := actions.Deps{Provider: llm.NewOllama(cfg.LLM.BaseURL), Model: cfg.LLM.Model}
	if cfg.Search.Enabled {
		deps.Search = actions.NewSearxClient(cfg.Search.BaseURL)
	}
	if err := actions.RegisterDefaults(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
