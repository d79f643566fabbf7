package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Audit.Store != "memory" {
		t.Errorf("expected default audit store memory, got %s", cfg.Audit.Store)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected default exporter stdout, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Summary.Enabled != true {
		t.Errorf("expected summary enabled by default")
	}
	if cfg.Judge.Enabled {
		t.Errorf("expected judge disabled by default")
	}
}

func TestLoadEnv(t *testing.T) {
	os.Setenv("PIPO_LLM_PROVIDER", "openai")
	defer os.Unsetenv("PIPO_LLM_PROVIDER")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider openai from env, got %s", cfg.LLM.Provider)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
llm:
  provider: "openai"
  model: "gpt-4o-mini"
search:
  enabled: true
  base_url: "http://searx.local"
judge:
  enabled: true
audit:
  enabled: true
  store: "sqlite"
  dsn: "/tmp/audit.db"
`
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("file value not applied: %s", cfg.LLM.Model)
	}
	if !cfg.Search.Enabled || cfg.Search.BaseURL != "http://searx.local" {
		t.Errorf("search section not loaded: %+v", cfg.Search)
	}
	if cfg.Audit.Store != "sqlite" || cfg.Audit.DSN != "/tmp/audit.db" {
		t.Errorf("audit section not loaded: %+v", cfg.Audit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
