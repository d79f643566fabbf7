// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/config"
)

func TestValidatePolicy(t *testing.T) {
	cfg := &config.Config{}
	if r := validatePolicy(cfg); r.Status != "ok" {
		t.Errorf("empty policy: status = %q, want ok", r.Status)
	}

	cfg.Policy.Deny = []string{"send_*"}
	if r := validatePolicy(cfg); r.Status != "ok" {
		t.Errorf("valid deny pattern: status = %q, want ok", r.Status)
	}

	cfg.Policy.Deny = []string{"[unclosed"}
	if r := validatePolicy(cfg); r.Status != "error" {
		t.Errorf("bad pattern: status = %q, want error", r.Status)
	}

	cfg.Policy.Deny = nil
	cfg.Policy.Rules = []config.PolicyRule{{ID: "r1", Effect: "block", Pattern: "*"}}
	if r := validatePolicy(cfg); r.Status != "error" {
		t.Errorf("invalid effect: status = %q, want error", r.Status)
	}
}

func TestValidateGuardrails(t *testing.T) {
	cfg := &config.Config{}
	r := validateGuardrails(cfg)
	if r.Status != "ok" || r.Message != "disabled" {
		t.Errorf("empty guardrails: got %q/%q", r.Status, r.Message)
	}

	cfg.Guardrails.PIIScrub = "shred"
	if r := validateGuardrails(cfg); r.Status != "error" {
		t.Errorf("invalid pii_scrub: status = %q, want error", r.Status)
	}

	cfg.Guardrails.PIIScrub = "mask"
	cfg.Guardrails.InjectionScreen = true
	cfg.Guardrails.DeniedTopics = []string{"malware"}
	r = validateGuardrails(cfg)
	if r.Status != "ok" || r.Message != "3 checks enabled" {
		t.Errorf("enabled guardrails: got %q/%q", r.Status, r.Message)
	}
}

func TestValidateMCPServersConfigShape(t *testing.T) {
	cfg := &config.Config{MCP: []config.MCPServerConfig{
		{Name: "fs", Transport: "stdio", Command: "npx"},
		{Name: "broken", Transport: "stdio"},
		{Name: "odd", Transport: "carrier-pigeon"},
	}}

	results := validateMCPServers(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Status != "ok" {
		t.Errorf("stdio with command: status = %q, want ok", results[0].Status)
	}
	if results[1].Status != "error" {
		t.Errorf("stdio without command: status = %q, want error", results[1].Status)
	}
	if results[2].Status != "error" {
		t.Errorf("unknown transport: status = %q, want error", results[2].Status)
	}
}

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{"--json", "--config", "c.yaml", "run", "--prompt", "hi"})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	if !flags.JSON {
		t.Error("expected JSON flag set")
	}
	if flags.ConfigPath != "c.yaml" {
		t.Errorf("ConfigPath = %q, want c.yaml", flags.ConfigPath)
	}
	if len(rest) != 3 || rest[0] != "run" {
		t.Errorf("rest = %v, want [run --prompt hi]", rest)
	}
}

func TestParseGlobalFlagsUnknown(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
