package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// GenerateNode writes the candidate SQL statement.
type GenerateNode struct {
	*BaseNode
	dialect string
}

func NewGenerateNode(completion llm.CompletionService, dialect string, logger *zap.Logger) *GenerateNode {
	return &GenerateNode{
		BaseNode: NewBaseNode(StageGenerate, completion, logger),
		dialect:  dialect,
	}
}

// Execute stores the fence-stripped statement and starts a fresh repair budget.
func (n *GenerateNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	raw, err := n.complete(ctx,
		prompts.BuildGeneratorSystemMessage(n.dialect),
		prompts.BuildGeneratorPrompt(s.Schema, s.Plan, s.EffectiveQuestion()))
	if err != nil {
		return s, err
	}

	out := s.Clone()
	out.SQLQuery = llm.StripCodeFence(raw)
	out.RepairAttempts = 0
	out.ExecutionError = ""

	n.Logger().Debug("Generated SQL", zap.String("sql", out.SQLQuery))
	return out, nil
}
