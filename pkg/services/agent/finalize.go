package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

type finalizerReply struct {
	Answer  jsonutil.FlexibleString `json:"answer"`
	VizType jsonutil.FlexibleString `json:"viz_type"`
}

func (r finalizerReply) Recognized() bool {
	return strings.TrimSpace(string(r.Answer)) != ""
}

// FinalizeNode produces the user-facing answer and visualization hint.
type FinalizeNode struct {
	*BaseNode
}

func NewFinalizeNode(completion llm.CompletionService, logger *zap.Logger) *FinalizeNode {
	return &FinalizeNode{BaseNode: NewBaseNode(StageFinalize, completion, logger)}
}

// Execute handles three cases: direct questions, unrecovered failures
// (templated, no model call) and results, including an empty result set.
func (n *FinalizeNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	out := s.Clone()

	switch {
	case s.QuestionType == models.QuestionTypeDirect:
		answer, err := n.complete(ctx,
			prompts.BuildDirectAnswerSystemMessage(),
			prompts.BuildQuestionPrompt(s.EffectiveQuestion()))
		if err != nil {
			return s, err
		}
		out.FinalAnswer = strings.TrimSpace(answer)
		out.DataVizType = models.VizTypeNone

	case s.ExecutionError != "" && len(s.QueryResult) == 0:
		out.FinalAnswer = FailureAnswer(s.RepairAttempts, s.ExecutionError)
		out.DataVizType = models.VizTypeNone
		out.LastResultSummary = out.FinalAnswer

	default:
		raw, err := n.complete(ctx,
			prompts.BuildFinalizerSystemMessage(),
			prompts.BuildFinalizerPrompt(s.EffectiveQuestion(), s.LastSQLQuery, s.QueryResult, models.ResultSampleRows))
		if err != nil {
			return s, err
		}
		out.FinalAnswer, out.DataVizType = parseFinalizerReply(raw)
		out.LastResultSummary = ResultSummary(s.QueryResult)
	}

	n.Logger().Debug("Finalized answer",
		zap.String("viz", string(out.DataVizType)),
		zap.Int("rows", len(s.QueryResult)))

	return out.AppendTurn(models.TurnRoleAssistant, out.FinalAnswer), nil
}

// parseFinalizerReply returns the answer and hint from the model's JSON.
// Non-JSON replies and replies without an answer become the answer text
// with a table hint; unknown hints fall back to table.
func parseFinalizerReply(raw string) (string, models.VizType) {
	parsed := llm.ParseStructured[finalizerReply](raw)
	answer := strings.TrimSpace(string(parsed.Value.Answer))
	if !parsed.IsStructured() || answer == "" {
		return strings.TrimSpace(parsed.Raw), models.VizTypeTable
	}

	viz, ok := models.ParseVizType(string(parsed.Value.VizType))
	if !ok {
		viz = models.VizTypeTable
	}
	return answer, viz
}

// FailureAnswer is the templated answer when the repair loop gives up.
func FailureAnswer(attempts int, lastErr string) string {
	return fmt.Sprintf("Unable to retrieve data after %d repair attempt(s). Last error: %s", attempts, lastErr)
}

// ResultSummary describes a result set for the next turn's resolver.
func ResultSummary(rows []models.Row) string {
	if len(rows) == 0 {
		return "0 rows"
	}
	return fmt.Sprintf("%d rows; columns: %s", len(rows), strings.Join(rows[0].Columns, ", "))
}
