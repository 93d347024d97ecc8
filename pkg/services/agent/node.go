package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// Node is one pipeline stage. Execute receives the state by value and
// returns the updated copy; the input is never modified.
type Node interface {
	Name() Stage
	Execute(ctx context.Context, s models.SessionState) (models.SessionState, error)
}

// BaseNode provides common functionality for all pipeline nodes.
type BaseNode struct {
	stage  Stage
	llm    llm.CompletionService
	logger *zap.Logger
}

// NewBaseNode creates a base node. completion may be nil for nodes that never call the model.
func NewBaseNode(stage Stage, completion llm.CompletionService, logger *zap.Logger) *BaseNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseNode{
		stage:  stage,
		llm:    completion,
		logger: logger.Named(string(stage)),
	}
}

// Name returns the node's stage.
func (b *BaseNode) Name() Stage {
	return b.stage
}

// Logger returns the node's logger.
func (b *BaseNode) Logger() *zap.Logger {
	return b.logger
}

// complete sends one system and one user message.
func (b *BaseNode) complete(ctx context.Context, system, user string) (string, error) {
	if b.llm == nil {
		return "", fmt.Errorf("%s: no completion service configured", b.stage)
	}
	text, err := b.llm.Complete(ctx, []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return text, nil
}

type threadIDKey struct{}

func withThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

func threadIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(threadIDKey{}).(string)
	return id
}
