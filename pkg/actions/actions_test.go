package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/llm"
)

func TestEcho(t *testing.T) {
	out, err := Echo{}.Execute(context.Background(), action.Params{"value": "hello"})
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected output: %v", out)
	}

	if _, err := (Echo{}).Execute(context.Background(), action.Params{}); err == nil {
		t.Fatalf("echo without value should fail")
	}
}

func TestRegisterDefaults(t *testing.T) {
	reg := action.NewRegistry()
	deps := Deps{
		Provider: &llm.MockProvider{Response: "ok"},
		Search:   &stubSearch{},
	}
	if err := RegisterDefaults(reg, deps); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"echo", "web_search", "fetch_content", "ask_llm", "extract_entities", "generate_report"} {
		if _, err := reg.Lookup(name); err != nil {
			t.Fatalf("expected %s to be registered: %v", name, err)
		}
	}
}

func TestRegisterDefaultsWithoutBackends(t *testing.T) {
	reg := action.NewRegistry()
	if err := RegisterDefaults(reg, Deps{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Lookup("web_search"); err == nil {
		t.Fatalf("web_search must not register without a search client")
	}
	if _, err := reg.Lookup("ask_llm"); err == nil {
		t.Fatalf("ask_llm must not register without a provider")
	}
	if _, err := reg.Lookup("echo"); err != nil {
		t.Fatalf("echo should always register: %v", err)
	}
}

type stubSearch struct {
	query   string
	limit   int
	results []SearchResult
	err     error
}

func (s *stubSearch) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	s.query = query
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestWebSearch(t *testing.T) {
	client := &stubSearch{results: []SearchResult{
		{Title: "One", URL: "https://example.com/1", Snippet: "first"},
	}}
	a := NewWebSearch(client)

	out, err := a.Execute(context.Background(), action.Params{"query": "go testing", "num_results": 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if client.query != "go testing" || client.limit != 3 {
		t.Fatalf("client got query=%q limit=%d", client.query, client.limit)
	}
	results := out.([]map[string]any)
	if len(results) != 1 || results[0]["title"] != "One" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestWebSearchRequiresQuery(t *testing.T) {
	a := NewWebSearch(&stubSearch{})
	if _, err := a.Execute(context.Background(), action.Params{}); err == nil {
		t.Fatalf("expected error without query")
	}
}

func TestSearxClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Fatalf("missing json format param, got %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "pipo" {
			t.Fatalf("unexpected query: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a.example","content":"alpha"},
			{"title":"B","url":"https://b.example","content":"beta"},
			{"title":"C","url":"https://c.example","content":"gamma"}
		]}`))
	}))
	defer srv.Close()

	client := NewSearxClient(srv.URL)
	results, err := client.Search(context.Background(), "pipo", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not applied, got %d results", len(results))
	}
	if results[0].Title != "A" || results[0].Snippet != "alpha" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
}

func TestSearxClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewSearxClient(srv.URL)
	if _, err := client.Search(context.Background(), "pipo", 5); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestFetchContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Test Page</title></head><body>
			<article><h1>Test Page</h1>
			<p>This is the readable body of the page, long enough that the
			extractor keeps it as primary content for the reader to see.</p>
			<p>A second paragraph with additional detail about the topic at
			hand, ensuring the content threshold is met.</p>
			</article></body></html>`))
	}))
	defer srv.Close()

	a := NewFetchContent(NewContentFetcher())
	out, err := a.Execute(context.Background(), action.Params{"url": srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	text := out.(string)
	if !strings.Contains(text, "readable body") {
		t.Fatalf("content not extracted: %q", text)
	}
}

func TestFetchContentRejectsRelativeURL(t *testing.T) {
	a := NewFetchContent(NewContentFetcher())
	if _, err := a.Execute(context.Background(), action.Params{"url": "/relative/path"}); err == nil {
		t.Fatalf("expected error for relative URL")
	}
}

func TestAskLLM(t *testing.T) {
	provider := &llm.MockProvider{Response: "42"}
	a := NewAskLLM(provider, "test-model")

	out, err := a.Execute(context.Background(), action.Params{"query": "what is the answer"})
	if err != nil {
		t.Fatalf("ask_llm: %v", err)
	}
	if out != "42" {
		t.Fatalf("unexpected answer: %v", out)
	}
}

func TestAskLLMProviderFailure(t *testing.T) {
	a := NewAskLLM(&llm.FailingMockProvider{}, "")
	if _, err := a.Execute(context.Background(), action.Params{"query": "q"}); err == nil {
		t.Fatalf("expected provider failure to surface")
	}
}

func TestExtractEntities(t *testing.T) {
	provider := &llm.MockProvider{Response: "```json\n[{\"type\":\"PERSON\",\"text\":\"John Smith\"},{\"type\":\"ORG\",\"text\":\"Acme Corp\"}]\n```"}
	a := NewExtractEntities(provider, "")

	out, err := a.Execute(context.Background(), action.Params{"text": "John Smith works at Acme Corp."})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	entities := out.([]map[string]any)
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[0]["type"] != "PERSON" || entities[0]["text"] != "John Smith" {
		t.Fatalf("unexpected entity: %+v", entities[0])
	}
}

func TestExtractEntitiesBadJSON(t *testing.T) {
	provider := &llm.MockProvider{Response: "I found John Smith and Acme Corp."}
	a := NewExtractEntities(provider, "")
	if _, err := a.Execute(context.Background(), action.Params{"text": "x"}); err == nil {
		t.Fatalf("expected error for non-JSON response")
	}
}

func TestGenerateReport(t *testing.T) {
	var seen string
	provider := &llm.MockProvider{ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		seen = req.Messages[0].Content
		return &llm.ChatResponse{Content: "The report."}, nil
	}}
	a := NewGenerateReport(provider, "")

	out, err := a.Execute(context.Background(), action.Params{"content": "facts", "style": "casual"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if out != "The report." {
		t.Fatalf("unexpected report: %v", out)
	}
	if !strings.Contains(seen, "casual") || !strings.Contains(seen, "facts") {
		t.Fatalf("prompt missing style or content: %q", seen)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  ```json\n[]\n```  ", "[]"},
	}
	for _, tc := range cases {
		if got := StripCodeFences(tc.in); got != tc.want {
			t.Fatalf("StripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
