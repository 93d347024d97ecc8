package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// planReply tolerates scalars where lists are expected and numbers where text is.
type planReply struct {
	Steps        jsonutil.FlexibleStringList `json:"steps"`
	TablesNeeded jsonutil.FlexibleStringList `json:"tables_needed"`
	Approach     jsonutil.FlexibleString     `json:"approach"`
}

// Recognized reports whether any plan field was present. Absent lists stay nil.
func (r planReply) Recognized() bool {
	return r.Steps != nil || r.TablesNeeded != nil || strings.TrimSpace(string(r.Approach)) != ""
}

// PlanNode asks for a structured query plan.
type PlanNode struct {
	*BaseNode
}

func NewPlanNode(completion llm.CompletionService, logger *zap.Logger) *PlanNode {
	return &PlanNode{BaseNode: NewBaseNode(StagePlan, completion, logger)}
}

// Execute stores the parsed plan, or a degenerate one wrapping the raw text.
func (n *PlanNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	raw, err := n.complete(ctx,
		prompts.BuildPlannerSystemMessage(),
		prompts.BuildPlannerPrompt(s.Schema, s.EffectiveQuestion()))
	if err != nil {
		return s, err
	}

	var plan models.Plan
	parsed := llm.ParseStructured[planReply](raw)
	if parsed.IsStructured() {
		plan = models.Plan{
			Steps:        []string(parsed.Value.Steps),
			TablesNeeded: []string(parsed.Value.TablesNeeded),
			Approach:     strings.TrimSpace(string(parsed.Value.Approach)),
		}
		if plan.Steps == nil {
			plan.Steps = []string{}
		}
		if plan.TablesNeeded == nil {
			plan.TablesNeeded = []string{}
		}
	} else {
		n.Logger().Debug("Planner reply was not a plan, using degenerate plan")
		plan = models.DegeneratePlan(parsed.Raw)
	}

	n.Logger().Debug("Planned query",
		zap.Strings("tables_needed", plan.TablesNeeded),
		zap.Int("steps", len(plan.Steps)))

	out := s.Clone()
	out.Plan = &plan
	return out, nil
}
