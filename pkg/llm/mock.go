package llm

import (
	"context"
	"sync"
)

// MockChatClient is a configurable ChatClient for tests.
// Set ChatFunc to control behavior; when nil, Chat returns Reply.
type MockChatClient struct {
	ChatFunc func(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error)

	// Reply is returned by Chat when ChatFunc is nil.
	Reply string

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu       sync.Mutex
	requests []*ChatRequest
}

func NewMockChatClient() *MockChatClient {
	return &MockChatClient{ModelName: "mock-model"}
}

var _ ChatClient = (*MockChatClient)(nil)

func (m *MockChatClient) Chat(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req, executor)
	}
	return &ChatResult{Reply: m.Reply, ToolCalls: []ToolCallRecord{}}, nil
}

func (m *MockChatClient) Model() string {
	return m.ModelName
}

// Requests returns every request Chat received.
func (m *MockChatClient) Requests() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
