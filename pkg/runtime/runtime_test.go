// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Log:       config.LogConfig{Level: "info", Format: "text"},
		LLM:       config.LLMConfig{Provider: "ollama", Model: "test-model", BaseURL: "http://localhost:11434"},
		Summary:   config.SummaryConfig{Enabled: false},
		Telemetry: config.TelemetryConfig{Exporter: "none"},
	}
}

func TestBuildWithDefaults(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Agent == nil {
		t.Fatal("expected agent to be built")
	}
	if rt.Registry == nil || rt.Registry.Len() == 0 {
		t.Fatal("expected built-in actions to be registered")
	}
	if _, err := rt.Registry.Lookup("echo"); err != nil {
		t.Fatalf("echo should be registered: %v", err)
	}
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := Build(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "mystery"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestBuildWithSQLiteAudit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Audit = config.AuditConfig{Enabled: true, Store: "sqlite", DSN: t.TempDir() + "/audit.db"}

	rt, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(ctx)

	if rt.auditDB == nil {
		t.Fatal("expected audit database handle")
	}
}

func TestBuildRejectsUnknownAuditStore(t *testing.T) {
	cfg := testConfig()
	cfg.Audit = config.AuditConfig{Enabled: true, Store: "etcd"}
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown audit store")
	}
}

func TestBuildGuardrails(t *testing.T) {
	if got := buildGuardrails(config.GuardrailsConfig{}); got != nil {
		t.Fatal("empty guardrails config should produce no pipeline")
	}
	if got := buildGuardrails(config.GuardrailsConfig{PIIScrub: "off"}); got != nil {
		t.Fatal("pii_scrub off should produce no pipeline")
	}

	guard := buildGuardrails(config.GuardrailsConfig{
		InjectionScreen: true,
		PIIScrub:        "mask",
		DeniedTopics:    []string{"malware"},
	})
	if guard == nil {
		t.Fatal("expected a pipeline")
	}
	screens, scrubbers := guard.Size()
	if screens != 2 {
		t.Errorf("screens = %d, want 2", screens)
	}
	if scrubbers != 1 {
		t.Errorf("scrubbers = %d, want 1", scrubbers)
	}

	res := guard.ScrubOutput(context.Background(), "reach me at bob@example.com")
	if !res.Changed {
		t.Error("expected the email to be scrubbed")
	}
}

func TestBuildGuardrailsPIIModes(t *testing.T) {
	for _, mode := range []string{"mask", "drop", "hash"} {
		guard := buildGuardrails(config.GuardrailsConfig{PIIScrub: mode})
		if guard == nil {
			t.Fatalf("mode %q: expected a pipeline", mode)
		}
		res := guard.ScrubOutput(context.Background(), "bob@example.com")
		if len(res.Redactions) != 1 {
			t.Errorf("mode %q: redactions = %d, want 1", mode, len(res.Redactions))
		}
	}
}

func TestBuildWithPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Policy = config.PolicyConfig{Deny: []string{"send_*"}}

	rt, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(ctx)
}

func TestPolicyConfigured(t *testing.T) {
	if policyConfigured(config.PolicyConfig{}) {
		t.Error("empty policy should not count as configured")
	}
	if !policyConfigured(config.PolicyConfig{Deny: []string{"x"}}) {
		t.Error("denylist should count as configured")
	}
	if !policyConfigured(config.PolicyConfig{Rules: []config.PolicyRule{{Effect: "deny", Pattern: "*"}}}) {
		t.Error("rules should count as configured")
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
	if got := orDefault("set", "fallback"); got != "set" {
		t.Errorf("got %q, want set", got)
	}
}
