// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/executor"
	"github.com/MagicOwO/pipo-agent/pkg/runtime"
)

func runRun(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("run", flag.ExitOnError)
	prompt := cmd.String("prompt", "", "Single request to process (non-interactive)")
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	watch := cmd.Bool("watch", false, "Watch the config file for changes and hot-reload")

	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		NewConfigError(err, flags.ConfigPath).PrintError(flags.JSON)
		os.Exit(1)
	}
	if *noTelemetry {
		cfg.Telemetry.Exporter = "none"
	}

	var watcher *config.Watcher
	if *watch && flags.ConfigPath != "" {
		var watchErr error
		watcher, _, watchErr = config.WatchConfig(ctx, flags.ConfigPath,
			config.WithWatchInterval(1*time.Second),
		)
		if watchErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not watch config: %v\n", watchErr)
		} else {
			watcher.OnChange(func(*config.Config) {
				if !flags.JSON {
					fmt.Println("\n[Config changed; restart to apply]")
				}
			})
			if !flags.JSON {
				fmt.Printf("Watching config: %s\n", flags.ConfigPath)
			}
		}
	}
	defer func() {
		if watcher != nil {
			watcher.Stop()
		}
	}()

	rt, err := runtime.Build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	if !flags.JSON {
		fmt.Printf("PIPO Agent\n")
		fmt.Printf("LLM: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Printf("Actions: %d\n", rt.Registry.Len())
		if len(cfg.MCP) > 0 {
			fmt.Printf("MCP servers: %d\n", len(cfg.MCP))
		}
		fmt.Println()
	}

	if *prompt != "" {
		runSinglePrompt(ctx, rt, *prompt, flags.JSON)
		return
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		runREPL(ctx, rt, flags.JSON)
		return
	}

	runPipeMode(ctx, rt, flags.JSON)
}

func runSinglePrompt(ctx context.Context, rt *runtime.Runtime, prompt string, jsonOutput bool) {
	result := rt.ProcessRequest(ctx, prompt)
	printResult(result, jsonOutput)
	if !result.Success() {
		os.Exit(1)
	}
}

func runREPL(ctx context.Context, rt *runtime.Runtime, jsonOutput bool) {
	if !jsonOutput {
		fmt.Println("Interactive mode. Type 'exit' or Ctrl+C to quit.")
		fmt.Println("---")
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if !jsonOutput {
			fmt.Print("\n> ")
		}

		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Println("\nGoodbye!")
			}
			return
		default:
		}

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			if !jsonOutput {
				fmt.Println("Goodbye!")
			}
			return
		}

		if strings.HasPrefix(input, "/") {
			handleCommand(rt, input, jsonOutput)
			continue
		}

		printResult(rt.ProcessRequest(ctx, input), jsonOutput)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	}
}

func runPipeMode(ctx context.Context, rt *runtime.Runtime, jsonOutput bool) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		printResult(rt.ProcessRequest(ctx, input), jsonOutput)
	}
}

func handleCommand(rt *runtime.Runtime, input string, jsonOutput bool) {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/help":
		if !jsonOutput {
			fmt.Println(`Commands:
  /help      Show this help
  /actions   List registered actions
  /exit      Exit the REPL`)
		}

	case "/actions":
		specs := rt.Registry.List()
		if jsonOutput {
			names := make([]string, len(specs))
			for i, s := range specs {
				names[i] = s.Name
			}
			printJSON(map[string]any{"actions": names})
			return
		}
		if len(specs) == 0 {
			fmt.Println("No actions registered")
			return
		}
		fmt.Println("Registered actions:")
		for _, s := range specs {
			fmt.Printf("  - %s: %s\n", s.Name, truncateString(s.Description, 60))
		}

	case "/exit", "/quit":
		if !jsonOutput {
			fmt.Println("Goodbye!")
		}
		os.Exit(0)

	default:
		if !jsonOutput {
			fmt.Printf("Unknown command: %s (try /help)\n", input)
		}
	}
}

func printResult(result *executor.Result, jsonOutput bool) {
	if jsonOutput {
		printJSON(result)
		return
	}
	if !result.Success() {
		fmt.Fprintf(os.Stderr, "%s\n", result.ToText())
		return
	}
	fmt.Printf("%s\n", result.ToText())
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
