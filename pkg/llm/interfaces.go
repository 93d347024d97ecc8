// Package llm provides chat completion clients for the question answering pipeline.
package llm

import (
	"context"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CompletionService turns a message sequence into a single text completion.
// Use this interface for dependency injection to enable mocking in tests.
type CompletionService interface {
	// Complete sends the messages and returns the text of the model's reply.
	Complete(ctx context.Context, messages []Message) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure the provider clients implement CompletionService at compile time.
var (
	_ CompletionService = (*OpenAIClient)(nil)
	_ CompletionService = (*AnthropicClient)(nil)
)
