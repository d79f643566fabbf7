package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a testing implementation of Provider. It records the last
// request it saw so tests can assert on the prompt that reached the model.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	mu          sync.Mutex
	lastRequest *ChatRequest
	calls       int
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	r := req
	m.lastRequest = &r
	m.calls++
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(msg.Content)
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: len(m.Response),
			TotalTokens:      prompt + len(m.Response),
		},
	}, nil
}

// LastRequest returns the most recent request, or nil before the first call.
func (m *MockProvider) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Calls returns how many times Chat has been invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FailingMockProvider always fails.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}
