package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// ClassifyNode decides whether the question needs data.
type ClassifyNode struct {
	*BaseNode
}

func NewClassifyNode(completion llm.CompletionService, logger *zap.Logger) *ClassifyNode {
	return &ClassifyNode{BaseNode: NewBaseNode(StageClassify, completion, logger)}
}

// Execute sets QuestionType and RequiresSQL. Unrecognized answers mean SQL.
func (n *ClassifyNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	raw, err := n.complete(ctx,
		prompts.BuildClassifierSystemMessage(),
		prompts.BuildQuestionPrompt(s.EffectiveQuestion()))
	if err != nil {
		return s, err
	}

	out := s.Clone()
	out.QuestionType = models.ParseQuestionType(raw)
	out.RequiresSQL = out.QuestionType == models.QuestionTypeSQL

	n.Logger().Debug("Classified question",
		zap.String("raw", raw),
		zap.String("question_type", string(out.QuestionType)))
	return out, nil
}
