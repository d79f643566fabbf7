// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MagicOwO/pipo-agent/cmd/pipo/scaffold"
)

func runInit(flags globalFlags, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	llmProvider := fs.String("llm", "ollama", "Default LLM provider: ollama, openai")
	enableMCP := fs.Bool("mcp", false, "Include MCP server configuration")
	enablePolicy := fs.Bool("policy", false, "Include a starter action policy")
	enableGuardrails := fs.Bool("guardrails", false, "Include guardrails configuration")
	overwrite := fs.Bool("overwrite", false, "Overwrite existing files")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pipo init <directory> [flags]

Generate a starter pipo project: config, an example plan, and a README.

Arguments:
  directory    Target directory for the new project

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  pipo init my-agent
  pipo init my-agent --llm openai --policy --guardrails
  pipo init my-agent --mcp
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: directory argument required")
		fs.Usage()
		os.Exit(1)
	}

	dir := fs.Arg(0)

	if *llmProvider != "ollama" && *llmProvider != "openai" {
		fmt.Fprintf(os.Stderr, "Error: invalid --llm %q. Valid options: ollama, openai\n", *llmProvider)
		os.Exit(1)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid directory path: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(absDir); err == nil && !*overwrite {
		fmt.Fprintf(os.Stderr, "Error: directory %q already exists. Use --overwrite to replace.\n", dir)
		os.Exit(1)
	}

	opts := scaffold.Options{
		ProjectName:      filepath.Base(absDir),
		LLMProvider:      *llmProvider,
		EnableMCP:        *enableMCP,
		EnablePolicy:     *enablePolicy,
		EnableGuardrails: *enableGuardrails,
	}

	if !flags.JSON {
		fmt.Printf("Creating pipo project %q...\n", opts.ProjectName)
		fmt.Printf("  LLM: %s\n", *llmProvider)
	}

	if err := scaffold.Generate(absDir, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating project: %v\n", err)
		os.Exit(1)
	}

	if flags.JSON {
		printJSON(map[string]string{"created": absDir})
		return
	}
	fmt.Println()
	fmt.Println("Project created. Next steps:")
	fmt.Printf("  cd %s\n", dir)
	fmt.Println("  pipo validate --config config/config.yaml")
	fmt.Println("  pipo run --config config/config.yaml")
}
