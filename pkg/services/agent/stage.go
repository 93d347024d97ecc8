// Package agent answers natural-language questions with a fixed state machine:
// resolve, classify, then either a direct answer or the SQL path of schema
// discovery, planning, generation, guardrail, execution and bounded repair,
// ending in a finalized answer.
package agent

import "github.com/ekaya-inc/ekaya-askdata/pkg/models"

// Stage names a step of the pipeline.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageClassify  Stage = "classify"
	StageSchema    Stage = "schema"
	StagePlan      Stage = "plan"
	StageGenerate  Stage = "generate"
	StageGuardrail Stage = "guardrail"
	StageExecute   Stage = "execute"
	StageRepair    Stage = "repair"
	StageFinalize  Stage = "finalize"
	StageEnd       Stage = "end"
)

// Next returns the stage that follows stage given the state it produced.
// The two conditional edges are after classification (SQL or direct) and
// after execution (repair while attempts remain, otherwise finalize).
func Next(stage Stage, s models.SessionState) Stage {
	switch stage {
	case StageResolve:
		return StageClassify
	case StageClassify:
		if s.RequiresSQL {
			return StageSchema
		}
		return StageFinalize
	case StageSchema:
		return StagePlan
	case StagePlan:
		return StageGenerate
	case StageGenerate, StageRepair:
		return StageGuardrail
	case StageGuardrail:
		return StageExecute
	case StageExecute:
		if s.ExecutionError != "" && s.RepairAttempts < models.MaxRepairAttempts {
			return StageRepair
		}
		return StageFinalize
	default:
		return StageEnd
	}
}
