package agent_test

import (
	"context"
	"sync"

	"airoi.app/assessor/common/llm"
)

type generateCall struct {
	messages []llm.Message
	system   string
}

type mockClient struct {
	generateFn func(ctx context.Context, messages []llm.Message, system string) (string, error)

	mu    sync.Mutex
	calls []generateCall
}

func (m *mockClient) Generate(ctx context.Context, messages []llm.Message, system string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, generateCall{messages: append([]llm.Message(nil), messages...), system: system})
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, messages, system)
	}
	return "", nil
}

func (m *mockClient) Provider() llm.Provider { return llm.ProviderOllama }

func (m *mockClient) Model() string { return "test-model" }

func (m *mockClient) lastCall() generateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func reply(text string) func(context.Context, []llm.Message, string) (string, error) {
	return func(context.Context, []llm.Message, string) (string, error) {
		return text, nil
	}
}
