package plan

import (
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	payload := []byte(`{
  "goal": "research a topic",
  "steps": [
    { "action": "web_search", "args": { "query": "go concurrency" }, "output_key": "results" },
    { "action": "echo", "input_mapping": { "value": "results" }, "output_key": "final" }
  ]
}`)
	p, err := ParseJSON(payload)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if p.Goal != "research a topic" {
		t.Fatalf("unexpected goal: %q", p.Goal)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("unexpected step count: %d", len(p.Steps))
	}
	if p.Steps[1].InputMapping["value"] != "results" {
		t.Fatalf("unexpected input mapping: %+v", p.Steps[1].InputMapping)
	}
	if p.ID == "" {
		t.Fatalf("expected generated plan id")
	}
}

func TestParseYAML(t *testing.T) {
	payload := []byte(`
goal: research a topic
steps:
  - action: web_search
    args:
      query: go concurrency
    output_key: results
  - action: echo
    input_mapping:
      value: results
`)
	p, err := ParseYAML(payload)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("unexpected step count: %d", len(p.Steps))
	}
	if p.Steps[0].OutputKey != "results" {
		t.Fatalf("unexpected output key: %q", p.Steps[0].OutputKey)
	}
}

func TestParseLenient(t *testing.T) {
	// An empty plan parses; rejecting it is the validator's job.
	p, err := ParseJSON([]byte(`{"goal": "nothing", "steps": []}`))
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(p.Steps) != 0 {
		t.Fatalf("expected no steps")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	p := &Plan{
		ID:   "plan-rt",
		Goal: "round trip",
		Steps: []Step{
			{Action: "echo", Args: map[string]any{"value": "hello"}, OutputKey: "x"},
			{Action: "echo", InputMapping: map[string]string{"value": "x"}, OutputKey: "y"},
		},
	}

	jsonPayload, err := MarshalJSON(p, true)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	parsedJSON, err := ParseJSON(jsonPayload)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if parsedJSON.ID != p.ID || len(parsedJSON.Steps) != 2 {
		t.Fatalf("json round-trip mismatch: %+v", parsedJSON)
	}

	yamlPayload, err := MarshalYAML(p)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	parsedYAML, err := ParseYAML(yamlPayload)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if parsedYAML.Steps[1].InputMapping["value"] != "x" {
		t.Fatalf("yaml round-trip mismatch: %+v", parsedYAML.Steps[1])
	}
}

func TestDescribe(t *testing.T) {
	p := &Plan{
		Goal: "summarize the news",
		Steps: []Step{
			{Action: "web_search", Description: "Search for today's headlines", Args: map[string]any{"query": "news"}, OutputKey: "results"},
			{Action: "generate_report", InputMapping: map[string]string{"content": "results"}},
		},
	}
	text := p.Describe()
	for _, want := range []string{
		"Plan to achieve: summarize the news",
		"Step 1: Search for today's headlines",
		"Step 2: generate_report",
		"- content from results",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("describe missing %q:\n%s", want, text)
		}
	}
}
