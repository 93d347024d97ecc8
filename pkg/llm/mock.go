package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockCompletionService is a configurable mock for testing completion consumers.
// Set CompleteFunc for full control, or Responses for a scripted sequence.
type MockCompletionService struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, the next entry of Responses is returned.
	CompleteFunc func(ctx context.Context, messages []Message) (string, error)

	// Responses are returned in order when CompleteFunc is nil.
	// Running out of responses returns an error.
	Responses []string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	mu sync.Mutex

	// Call tracking for verification
	CompleteCalls int
	Requests      [][]Message
	Stages        []string
}

// NewMockCompletionService creates a mock that replies with the given responses in order.
func NewMockCompletionService(responses ...string) *MockCompletionService {
	return &MockCompletionService{
		Model:     "mock-model",
		Responses: responses,
	}
}

// Complete implements CompletionService.
func (m *MockCompletionService) Complete(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, append([]Message(nil), messages...))
	if stage, ok := GetContext(ctx)["stage"].(string); ok {
		m.Stages = append(m.Stages, stage)
	}
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock completion service: no scripted response for call %d", m.CompleteCalls)
	}
	next := m.Responses[0]
	m.Responses = m.Responses[1:]
	return next, nil
}

// GetModel implements CompletionService.
func (m *MockCompletionService) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// LastRequest returns the messages of the most recent call, or nil.
func (m *MockCompletionService) LastRequest() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

// Ensure MockCompletionService implements CompletionService at compile time.
var _ CompletionService = (*MockCompletionService)(nil)
