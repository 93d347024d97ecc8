package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

const unknownError = "Unknown error"

// RepairNode asks the model to fix a statement that failed the guardrail or execution.
type RepairNode struct {
	*BaseNode
	dialect string
}

func NewRepairNode(completion llm.CompletionService, dialect string, logger *zap.Logger) *RepairNode {
	return &RepairNode{
		BaseNode: NewBaseNode(StageRepair, completion, logger),
		dialect:  dialect,
	}
}

// Execute replaces SQLQuery with the corrected statement, counts the attempt
// and clears the error so the guardrail sees a clean slate.
func (n *RepairNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	failed := s.SQLQuery
	if failed == "" {
		// The guardrail clears SQLQuery when it blocks.
		failed = s.LastSQLQuery
	}
	execErr := s.ExecutionError
	if execErr == "" {
		execErr = unknownError
	}

	raw, err := n.complete(ctx,
		prompts.BuildRepairSystemMessage(n.dialect),
		prompts.BuildRepairPrompt(s.Schema, s.EffectiveQuestion(), failed, execErr))
	if err != nil {
		return s, err
	}

	out := s.Clone()
	out.SQLQuery = llm.StripCodeFence(raw)
	out.RepairAttempts = s.RepairAttempts + 1
	out.ExecutionError = ""

	metrics.RepairAttemptsTotal.Inc()
	n.Logger().Debug("Repaired SQL",
		zap.Int("attempt", out.RepairAttempts),
		zap.String("error", execErr),
		zap.String("sql", out.SQLQuery))
	return out, nil
}
