package llm

import (
	"context"
	"testing"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages:  []Message{{Role: RoleUser, Content: "Hi"}},
		ForceJSON: true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
	last := mock.LastRequest()
	if last == nil || !last.ForceJSON {
		t.Fatalf("expected recorded request with ForceJSON set, got %+v", last)
	}
	if mock.Calls() != 1 {
		t.Fatalf("unexpected call count: %d", mock.Calls())
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("first", "second")

	resp, err := mock.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "first" {
		t.Fatalf("unexpected first response: %q", resp.Content)
	}
	if mock.Remaining() != 1 {
		t.Fatalf("unexpected remaining count: %d", mock.Remaining())
	}

	resp, err = mock.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "second" {
		t.Fatalf("unexpected second response: %q", resp.Content)
	}

	if _, err = mock.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected error when responses exhausted")
	}
	if mock.CallCount != 3 {
		t.Fatalf("unexpected call count: %d", mock.CallCount)
	}
}
