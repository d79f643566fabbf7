package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/core"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigRejectsUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("svc", "v1", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestInitWithConfigRequiresOTLPEndpoint(t *testing.T) {
	if _, err := InitWithConfig("svc", "v1", Config{Exporter: "otlp"}); err == nil {
		t.Fatal("expected error for missing otlp endpoint")
	}
}

func TestConfigureSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")
	if logger == nil {
		t.Fatal("logger should not be nil")
	}

	logger.Info("agent.test.event", "key", "value")
	out := buf.String()
	if !strings.Contains(out, "agent.test.event") {
		t.Fatalf("missing event in log output: %q", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Fatalf("missing attribute in log output: %q", out)
	}
}

func TestConfigureSlogInjectsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")

	ctx := core.WithRunID(context.Background(), "run-abc123")
	logger.InfoContext(ctx, "agent.run.start")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-abc123"`) {
		t.Fatalf("missing run_id in log output: %q", out)
	}
}

func TestConfigureSlogLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "text")

	logger.Info("agent.should.be.dropped")
	logger.Warn("agent.should.appear")

	out := buf.String()
	if strings.Contains(out, "agent.should.be.dropped") {
		t.Fatalf("info record not filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "agent.should.appear") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestPlanAttributesTruncatesGoal(t *testing.T) {
	long := strings.Repeat("g", 400)
	attrs := PlanAttributes("p1", long, 3)
	for _, a := range attrs {
		if string(a.Key) == AttrPlanGoal {
			if len(a.Value.AsString()) > 204 {
				t.Fatalf("goal not truncated: %d chars", len(a.Value.AsString()))
			}
			return
		}
	}
	t.Fatal("goal attribute missing")
}

func TestStepAttributes(t *testing.T) {
	attrs := StepAttributes(2, "web_search", "results")
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attrs, got %d", len(attrs))
	}
	attrs = StepAttributes(1, "echo", "")
	if len(attrs) != 2 {
		t.Fatalf("empty output key should be omitted, got %d attrs", len(attrs))
	}
}

func TestLLMUsageAttributes(t *testing.T) {
	attrs := LLMUsageAttributes(10, 20, 0)
	var total int64
	for _, a := range attrs {
		if string(a.Key) == AttrLLMTokensTotal {
			total = a.Value.AsInt64()
		}
	}
	if total != 30 {
		t.Fatalf("expected total 30, got %d", total)
	}
	if len(LLMUsageAttributes(0, 0, 0)) != 0 {
		t.Fatal("zero usage should produce no attributes")
	}
}
