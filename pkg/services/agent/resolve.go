package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// ResolveNode rewrites follow-up questions into standalone ones using the turn log.
type ResolveNode struct {
	*BaseNode
}

func NewResolveNode(completion llm.CompletionService, logger *zap.Logger) *ResolveNode {
	return &ResolveNode{BaseNode: NewBaseNode(StageResolve, completion, logger)}
}

// Execute leaves the first question of a thread untouched without calling the
// model. The raw user question, never the rewrite, is appended to the log.
func (n *ResolveNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	out := s.Clone()

	if len(s.Messages) == 0 {
		out.ResolvedQuestion = s.Question
		return out.AppendTurn(models.TurnRoleUser, s.Question), nil
	}

	resolved, err := n.complete(ctx,
		prompts.BuildResolverSystemMessage(),
		prompts.BuildResolverPrompt(s.Messages, s.PreviousSQLQuery, s.PreviousResultSummary, s.Question))
	if err != nil {
		return s, err
	}

	n.Logger().Debug("Resolved follow-up question",
		zap.String("question", s.Question),
		zap.String("resolved", resolved))

	out.ResolvedQuestion = resolved
	return out.AppendTurn(models.TurnRoleUser, s.Question), nil
}
