// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

// Adapter describes an available provider or backend.
type Adapter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	ConfigKeys  []string `json:"config_keys,omitempty"`
}

var adaptersRegistry = []Adapter{
	// LLM providers
	{
		Name:        "ollama",
		Type:        "llm",
		Description: "Local LLM inference with Ollama",
		ConfigKeys:  []string{"llm.provider=ollama", "llm.base_url", "llm.model"},
	},
	{
		Name:        "openai",
		Type:        "llm",
		Description: "OpenAI API and compatible endpoints",
		ConfigKeys:  []string{"llm.provider=openai", "llm.api_key", "llm.base_url", "llm.model"},
	},

	// Audit stores
	{
		Name:        "memory",
		Type:        "audit",
		Description: "In-memory audit records (non-persistent)",
		ConfigKeys:  []string{"audit.store=memory"},
	},
	{
		Name:        "sqlite",
		Type:        "audit",
		Description: "SQLite-backed audit records",
		ConfigKeys:  []string{"audit.store=sqlite", "audit.dsn"},
	},

	// Telemetry exporters
	{
		Name:        "stdout",
		Type:        "telemetry",
		Description: "Print traces and metrics to stdout",
		ConfigKeys:  []string{"telemetry.exporter=stdout"},
	},
	{
		Name:        "otlp",
		Type:        "telemetry",
		Description: "Export traces and metrics over OTLP gRPC",
		ConfigKeys:  []string{"telemetry.exporter=otlp", "telemetry.otlp_endpoint"},
	},
	{
		Name:        "none",
		Type:        "telemetry",
		Description: "Record in-process only, export nothing",
		ConfigKeys:  []string{"telemetry.exporter=none"},
	},

	// Search backends
	{
		Name:        "searxng",
		Type:        "search",
		Description: "Web search through a SearxNG instance",
		ConfigKeys:  []string{"search.enabled=true", "search.base_url"},
	},

	// MCP transports
	{
		Name:        "stdio",
		Type:        "mcp",
		Description: "MCP server launched as a subprocess",
		ConfigKeys:  []string{"mcp[].transport=stdio", "mcp[].command", "mcp[].args"},
	},
	{
		Name:        "http",
		Type:        "mcp",
		Description: "MCP server over streamable HTTP",
		ConfigKeys:  []string{"mcp[].transport=http", "mcp[].url"},
	},
}

func runAdapters(flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("adapters", flag.ExitOnError)
	typeFilter := cmd.String("type", "", "Filter by type: llm, audit, telemetry, search, mcp")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	var filtered []Adapter
	for _, a := range adaptersRegistry {
		if *typeFilter == "" || a.Type == *typeFilter {
			filtered = append(filtered, a)
		}
	}

	if flags.JSON {
		printJSON(map[string]any{"adapters": filtered})
		return
	}

	if len(filtered) == 0 {
		fmt.Printf("No adapters of type %q\n", *typeFilter)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
	for _, a := range filtered {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.Type, a.Description)
	}
	w.Flush()
}
