// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime assembles a ready-to-run agent from configuration: the
// LLM provider, the action registry with built-ins and discovered MCP
// tools, guardrails, policy, audit storage, and telemetry. Build is the
// single composition root used by the CLI and tests.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/actions"
	"github.com/MagicOwO/pipo-agent/pkg/agent"
	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/discovery"
	"github.com/MagicOwO/pipo-agent/pkg/executor"
	"github.com/MagicOwO/pipo-agent/pkg/governance"
	"github.com/MagicOwO/pipo-agent/pkg/guardrails"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
	"github.com/MagicOwO/pipo-agent/pkg/mcp"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
	"github.com/MagicOwO/pipo-agent/pkg/telemetry"
)

const serviceName = "pipo-agent"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Runtime holds a built agent and the resources behind it.
type Runtime struct {
	Agent    *agent.Agent
	Config   *config.Config
	Registry *action.Registry

	auditDB           *sql.DB
	mcpClients        []*mcp.Client
	shutdownTelemetry telemetry.ShutdownFunc
}

// Build assembles a runtime from configuration. Call Close when done.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	slog.SetDefault(telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	shutdown, err := telemetry.InitWithConfig(serviceName, Version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	rt := &Runtime{Config: cfg, shutdownTelemetry: shutdown}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	rt.Registry = action.NewRegistry()
	deps := actions.Deps{Provider: provider, Model: cfg.LLM.Model}
	if cfg.Search.Enabled {
		deps.Search = actions.NewSearxClient(cfg.Search.BaseURL)
	}
	if err := actions.RegisterDefaults(rt.Registry, deps); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("register built-in actions: %w", err)
	}

	if len(cfg.MCP) > 0 {
		resolver, err := discovery.NewResolver(discovery.NewConfigProvider(cfg))
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		clients, err := discovery.RegisterAll(ctx, rt.Registry, resolver)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("mcp discovery: %w", err)
		}
		rt.mcpClients = clients
	}

	opts := []agent.Option{
		agent.WithProvider(provider),
		agent.WithModel(cfg.LLM.Model),
		agent.WithRegistry(rt.Registry),
	}

	if cfg.Judge.Enabled {
		opts = append(opts, agent.WithJudge(agent.NewLLMJudge(provider, orDefault(cfg.Judge.Model, cfg.LLM.Model))))
	}
	if cfg.Summary.Enabled {
		opts = append(opts, agent.WithSummarizer(agent.NewLLMSummarizer(provider, orDefault(cfg.Summary.Model, cfg.LLM.Model))))
	}

	if cfg.Audit.Enabled {
		store, db, err := buildAuditStore(cfg.Audit)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		rt.auditDB = db
		opts = append(opts, agent.WithAuditStore(store))
	}

	if cfg.Executor.StepTimeoutSeconds > 0 {
		opts = append(opts, agent.WithStepTimeout(time.Duration(cfg.Executor.StepTimeoutSeconds)*time.Second))
	}
	if cfg.Executor.MaxRetries > 0 {
		opts = append(opts, agent.WithStepRetry(
			resilience.DefaultRetryConfig().WithMaxAttempts(cfg.Executor.MaxRetries+1)))
	}

	if guard := buildGuardrails(cfg.Guardrails); guard != nil {
		opts = append(opts, agent.WithGuardrails(guard))
	}
	if policyConfigured(cfg.Policy) {
		opts = append(opts, agent.WithPolicy(governance.FromConfig(cfg.Policy)))
	}

	a, err := agent.New(serviceName, opts...)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.Agent = a
	return rt, nil
}

// ProcessRequest forwards to the built agent.
func (r *Runtime) ProcessRequest(ctx context.Context, text string) *executor.Result {
	return r.Agent.ProcessRequest(ctx, text)
}

// Close releases MCP clients, the audit database, and telemetry.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	for _, client := range r.mcpClients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.auditDB != nil {
		if err := r.auditDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.shutdownTelemetry != nil {
		if err := r.shutdownTelemetry(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	case "openai":
		return llm.NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildAuditStore(cfg config.AuditConfig) (executor.AuditStore, *sql.DB, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return executor.NewMemoryAuditStore(), nil, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit db: %w", err)
		}
		store, err := executor.NewSQLiteAuditStore(db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init audit db: %w", err)
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit store %q", cfg.Store)
	}
}

func buildGuardrails(cfg config.GuardrailsConfig) *guardrails.Pipeline {
	var opts []guardrails.Option
	if cfg.InjectionScreen {
		opts = append(opts, guardrails.WithInjectionScreen())
	}
	switch strings.ToLower(cfg.PIIScrub) {
	case "mask":
		opts = append(opts, guardrails.WithPIIScrubber(guardrails.PIIMask))
	case "drop":
		opts = append(opts, guardrails.WithPIIScrubber(guardrails.PIIDrop))
	case "hash":
		opts = append(opts, guardrails.WithPIIScrubber(guardrails.PIIHash))
	}
	if len(cfg.DeniedTopics) > 0 {
		topics := make([]guardrails.Topic, 0, len(cfg.DeniedTopics))
		for _, t := range cfg.DeniedTopics {
			topics = append(topics, guardrails.Topic(strings.ToLower(strings.TrimSpace(t))))
		}
		opts = append(opts, guardrails.WithTopicScreen(topics...))
	}
	if len(opts) == 0 {
		return nil
	}
	return guardrails.New(opts...)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func policyConfigured(cfg config.PolicyConfig) bool {
	return len(cfg.Allow) > 0 || len(cfg.Deny) > 0 || len(cfg.Rules) > 0
}
