// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/mcp"
)

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // ok, warn, error, skip
	Message string `json:"message,omitempty"`
}

type validateResult struct {
	Config     checkResult   `json:"config"`
	LLM        checkResult   `json:"llm"`
	MCP        []checkResult `json:"mcp"`
	Policy     checkResult   `json:"policy"`
	Guardrails checkResult   `json:"guardrails"`
	Overall    string        `json:"overall"`
}

// runValidate checks configuration and connectivity without executing
// anything: config loads, the LLM backend answers, MCP servers list
// tools, and policy and guardrails settings are well-formed.
func runValidate(ctx context.Context, flags globalFlags, args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("validate takes no arguments"))
	}

	result := validateResult{MCP: []checkResult{}}
	hasError := false
	hasWarn := false

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		result.Config = checkResult{Name: "config", Status: "error", Message: fmt.Sprintf("failed to load: %v", err)}
		hasError = true
	} else {
		result.Config = checkResult{Name: "config", Status: "ok"}
	}

	if cfg != nil {
		result.LLM = validateLLM(cfg)
		result.Policy = validatePolicy(cfg)
		result.Guardrails = validateGuardrails(cfg)
		if len(cfg.MCP) > 0 {
			result.MCP = validateMCPServers(ctx, cfg)
		}
	} else {
		skip := checkResult{Status: "skip", Message: "config not loaded"}
		result.LLM = checkResult{Name: "llm", Status: skip.Status, Message: skip.Message}
		result.Policy = checkResult{Name: "policy", Status: skip.Status, Message: skip.Message}
		result.Guardrails = checkResult{Name: "guardrails", Status: skip.Status, Message: skip.Message}
	}

	for _, r := range append([]checkResult{result.LLM, result.Policy, result.Guardrails}, result.MCP...) {
		switch r.Status {
		case "error":
			hasError = true
		case "warn":
			hasWarn = true
		}
	}

	switch {
	case hasError:
		result.Overall = "error"
	case hasWarn:
		result.Overall = "warn"
	default:
		result.Overall = "ok"
	}

	if flags.JSON {
		printJSON(result)
	} else {
		printValidateResult(result)
	}
	if hasError {
		os.Exit(1)
	}
}

func validateLLM(cfg *config.Config) checkResult {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "ollama":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(baseURL + "/api/tags")
		if err != nil {
			return checkResult{Name: "llm", Status: "error", Message: fmt.Sprintf("ollama not reachable at %s: %v", baseURL, err)}
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return checkResult{Name: "llm", Status: "error", Message: fmt.Sprintf("ollama returned status %d", resp.StatusCode)}
		}
		if cfg.LLM.Model == "" {
			return checkResult{Name: "llm", Status: "warn", Message: "ollama reachable but no model configured"}
		}
		return checkResult{Name: "llm", Status: "ok", Message: fmt.Sprintf("ollama (%s)", cfg.LLM.Model)}

	case "openai":
		if cfg.LLM.APIKey == "" {
			return checkResult{Name: "llm", Status: "error", Message: "openai configured but no api_key set"}
		}
		return checkResult{Name: "llm", Status: "ok", Message: "openai (api key configured)"}

	default:
		return checkResult{Name: "llm", Status: "error", Message: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider)}
	}
}

func validateMCPServers(ctx context.Context, cfg *config.Config) []checkResult {
	results := make([]checkResult, 0, len(cfg.MCP))

	for _, server := range cfg.MCP {
		name := server.Name
		if name == "" {
			name = "unnamed"
		}
		transport := strings.ToLower(strings.TrimSpace(server.Transport))
		if transport == "" {
			transport = "stdio"
		}

		switch transport {
		case "stdio":
			if strings.TrimSpace(server.Command) == "" {
				results = append(results, checkResult{Name: "mcp:" + name, Status: "error", Message: "missing command for stdio transport"})
				continue
			}
			// Starting the subprocess is expensive; config shape is enough.
			results = append(results, checkResult{Name: "mcp:" + name, Status: "ok", Message: "stdio: " + server.Command})

		case "http":
			if server.URL == "" {
				results = append(results, checkResult{Name: "mcp:" + name, Status: "error", Message: "missing url for http transport"})
				continue
			}
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			client, err := mcp.NewClientWithStreamableHTTP(server.URL)
			if err != nil {
				cancel()
				results = append(results, checkResult{Name: "mcp:" + name, Status: "error", Message: fmt.Sprintf("failed to connect: %v", err)})
				continue
			}
			tools, err := client.ListTools(checkCtx)
			cancel()
			_ = client.Close()
			if err != nil {
				results = append(results, checkResult{Name: "mcp:" + name, Status: "error", Message: fmt.Sprintf("failed to list tools: %v", err)})
				continue
			}
			results = append(results, checkResult{Name: "mcp:" + name, Status: "ok", Message: fmt.Sprintf("http: %d tools available", len(tools))})

		default:
			results = append(results, checkResult{Name: "mcp:" + name, Status: "error", Message: fmt.Sprintf("unsupported transport %q", transport)})
		}
	}

	return results
}

func validatePolicy(cfg *config.Config) checkResult {
	total := len(cfg.Policy.Allow) + len(cfg.Policy.Deny) + len(cfg.Policy.Rules)
	if total == 0 {
		return checkResult{Name: "policy", Status: "ok", Message: "no policy configured (default: allow all)"}
	}

	for _, pattern := range append(append([]string{}, cfg.Policy.Allow...), cfg.Policy.Deny...) {
		if _, err := path.Match(pattern, "probe"); err != nil {
			return checkResult{Name: "policy", Status: "error", Message: fmt.Sprintf("bad pattern %q: %v", pattern, err)}
		}
	}
	for _, rule := range cfg.Policy.Rules {
		effect := strings.ToLower(rule.Effect)
		if effect != "allow" && effect != "deny" {
			return checkResult{Name: "policy", Status: "error", Message: fmt.Sprintf("rule %q has invalid effect %q", rule.ID, rule.Effect)}
		}
		if _, err := path.Match(rule.Pattern, "probe"); err != nil {
			return checkResult{Name: "policy", Status: "error", Message: fmt.Sprintf("rule %q has bad pattern: %v", rule.ID, err)}
		}
	}
	return checkResult{Name: "policy", Status: "ok", Message: fmt.Sprintf("%d entries", total)}
}

func validateGuardrails(cfg *config.Config) checkResult {
	switch strings.ToLower(cfg.Guardrails.PIIScrub) {
	case "", "off", "mask", "drop", "hash":
	default:
		return checkResult{Name: "guardrails", Status: "error", Message: fmt.Sprintf("invalid pii_scrub %q; use off, mask, drop, or hash", cfg.Guardrails.PIIScrub)}
	}

	enabled := 0
	if cfg.Guardrails.InjectionScreen {
		enabled++
	}
	if mode := strings.ToLower(cfg.Guardrails.PIIScrub); mode != "" && mode != "off" {
		enabled++
	}
	enabled += len(cfg.Guardrails.DeniedTopics)
	if enabled == 0 {
		return checkResult{Name: "guardrails", Status: "ok", Message: "disabled"}
	}
	return checkResult{Name: "guardrails", Status: "ok", Message: fmt.Sprintf("%d checks enabled", enabled)}
}

func printValidateResult(result validateResult) {
	statusIcon := map[string]string{
		"ok":    "✓",
		"warn":  "⚠",
		"error": "✗",
		"skip":  "○",
	}

	fmt.Println("PIPO Configuration Validation")
	fmt.Println("=============================")
	fmt.Println()

	printCheck(statusIcon, result.Config)
	printCheck(statusIcon, result.LLM)

	if len(result.MCP) > 0 {
		for _, r := range result.MCP {
			printCheck(statusIcon, r)
		}
	} else {
		fmt.Printf("%s mcp: no servers configured\n", statusIcon["ok"])
	}

	printCheck(statusIcon, result.Policy)
	printCheck(statusIcon, result.Guardrails)

	fmt.Println()
	switch result.Overall {
	case "ok":
		fmt.Println("✓ All checks passed")
	case "warn":
		fmt.Println("⚠ Validation completed with warnings")
	case "error":
		fmt.Println("✗ Validation failed")
	}
}

func printCheck(icons map[string]string, r checkResult) {
	icon := icons[r.Status]
	if r.Message != "" {
		fmt.Printf("%s %s: %s\n", icon, r.Name, r.Message)
		return
	}
	fmt.Printf("%s %s\n", icon, r.Name)
}
