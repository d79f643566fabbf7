// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Command pipo runs the PIPO agent: it turns natural language requests
// into validated action plans and executes them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/runtime"
)

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Timeout    time.Duration
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		runRun(ctx, global, args[1:])
	case "serve":
		runServe(ctx, global, args[1:])
	case "mcp":
		runMCPServe(ctx, global, args[1:])
	case "plan":
		runPlanCmd(ctx, global, args[1:])
	case "actions":
		runActions(ctx, global, args[1:])
	case "adapters":
		runAdapters(global, args[1:])
	case "validate":
		runValidate(ctx, global, args[1:])
	case "init":
		runInit(global, args[1:])
	case "version":
		printVersion(global.JSON)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q; run 'pipo help'", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		ConfigPath: getenv("PIPO_CONFIG", ""),
		Timeout:    30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printUsage() {
	fmt.Print(`pipo - request to plan to execution agent

Usage:
  pipo [global flags] <command> [command flags]

Commands:
  run       Process requests (single prompt, REPL, or pipe mode)
  serve     Expose the agent over an HTTP JSON API
  mcp       Expose registered actions as an MCP stdio server
  plan      Validate, explain, or render a plan file
  actions   List registered actions
  adapters  List available providers and backends
  validate  Check configuration and connectivity
  init      Generate a starter project
  version   Print version information
  help      Show this help

Global flags:
  --config <path>   Configuration file (also PIPO_CONFIG)
  --json            Machine-readable output
  --timeout <dur>   Timeout for network checks (default 30s)

Examples:
  pipo run --prompt "find recent articles about Go generics"
  pipo plan graph --path plans/research.yaml --output dot
  pipo validate --config config/config.yaml
`)
}

func printVersion(jsonOutput bool) {
	if jsonOutput {
		printJSON(map[string]string{"version": runtime.Version})
		return
	}
	fmt.Printf("pipo %s\n", runtime.Version)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
	}
}

func fatal(err error) {
	PrintSimpleError(err, false)
	os.Exit(1)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
