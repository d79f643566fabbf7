// Package config loads agent configuration from defaults, an optional YAML
// file, and PIPO_-prefixed environment variables, in that order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig         `koanf:"log"`
	LLM        LLMConfig         `koanf:"llm"`
	Search     SearchConfig      `koanf:"search"`
	Judge      JudgeConfig       `koanf:"judge"`
	Summary    SummaryConfig     `koanf:"summary"`
	Audit      AuditConfig       `koanf:"audit"`
	Executor   ExecutorConfig    `koanf:"executor"`
	Telemetry  TelemetryConfig   `koanf:"telemetry"`
	Policy     PolicyConfig      `koanf:"policy"`
	Guardrails GuardrailsConfig  `koanf:"guardrails"`
	MCP        []MCPServerConfig `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // openai, ollama
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type SearchConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"` // SearxNG instance
}

type JudgeConfig struct {
	Enabled bool   `koanf:"enabled"`
	Model   string `koanf:"model"` // empty uses llm.model
}

type SummaryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Model   string `koanf:"model"` // empty uses llm.model
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Store   string `koanf:"store"` // memory, sqlite
	DSN     string `koanf:"dsn"`   // sqlite file path
}

// ExecutorConfig bounds individual step execution.
type ExecutorConfig struct {
	StepTimeoutSeconds int `koanf:"step_timeout_seconds"` // 0 disables the bound
	MaxRetries         int `koanf:"max_retries"`          // extra attempts after the first; 0 disables retry
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// PolicyConfig gates which registered actions plans may use.
type PolicyConfig struct {
	Allow []string     `koanf:"allow"` // glob patterns; empty allows all
	Deny  []string     `koanf:"deny"`  // glob patterns; deny wins
	Rules []PolicyRule `koanf:"rules"`
}

type PolicyRule struct {
	ID      string `koanf:"id"`
	Effect  string `koanf:"effect"` // allow, deny
	Pattern string `koanf:"pattern"`
	Reason  string `koanf:"reason"`
}

// GuardrailsConfig enables request screening and summary scrubbing.
type GuardrailsConfig struct {
	InjectionScreen bool     `koanf:"injection_screen"`
	PIIScrub        string   `koanf:"pii_scrub"` // off, mask, drop, hash
	DeniedTopics    []string `koanf:"denied_topics"`
}

// MCPServerConfig describes one MCP server whose tools are registered
// as actions at startup.
type MCPServerConfig struct {
	Name      string   `koanf:"name"`
	Transport string   `koanf:"transport"` // stdio, http
	Command   string   `koanf:"command"`   // stdio
	Args      []string `koanf:"args"`      // stdio
	URL       string   `koanf:"url"`       // http
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5:7b-instruct")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("search.enabled", false)
	k.Set("search.base_url", "http://localhost:8888")

	k.Set("judge.enabled", false)
	k.Set("summary.enabled", true)

	k.Set("audit.enabled", false)
	k.Set("audit.store", "memory")
	k.Set("audit.dsn", "pipo_audit.db")

	k.Set("telemetry.exporter", "stdout")

	k.Set("guardrails.pii_scrub", "off")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (PIPO_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("PIPO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PIPO_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
