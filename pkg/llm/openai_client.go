package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds configuration for creating a completion client.
type Config struct {
	Endpoint    string  // Base URL, e.g., "https://api.openai.com/v1"; optional for anthropic
	Model       string  // Model name, e.g., "gpt-4o" or "claude-sonnet-4-6"
	APIKey      string  // Optional for local endpoints
	Temperature float64 // 0 for deterministic answers
	MaxTokens   int     // Upper bound on completion length; 0 uses the provider default
}

// OpenAIClient provides completions from OpenAI-compatible endpoints.
type OpenAIClient struct {
	client      *openai.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible completion client.
func NewOpenAIClient(cfg *Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	endpoint := cfg.Endpoint
	if endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(endpoint, "/")
	} else {
		endpoint = clientConfig.BaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("llm"),
	}, nil
}

// Complete sends the messages as a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content})
	}

	fields := append(contextFields(ctx),
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))
	c.logger.Debug("LLM request", fields...)

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			append(fields, zap.Duration("elapsed", time.Since(start)), zap.Error(err))...)
		return "", c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return "", c.withContext(NewError(ErrorTypeEmpty, "no choices in response", false, nil))
	}

	c.logger.Debug("LLM request completed",
		append(fields,
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Duration("elapsed", time.Since(start)))...)

	return resp.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *OpenAIClient) GetEndpoint() string {
	return c.endpoint
}

func (c *OpenAIClient) parseError(err error) error {
	return c.withContext(ClassifyError(err))
}

func (c *OpenAIClient) withContext(e *Error) *Error {
	e.Provider = ProviderOpenAI
	e.Model = c.model
	e.Endpoint = c.endpoint
	return e
}

func openAIRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
