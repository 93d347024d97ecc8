package models

import "slices"

// DegeneratePlanStep is the single step used when the planner output is not structured.
const DegeneratePlanStep = "Direct query"

// Plan is the planner's structured decomposition of a question.
type Plan struct {
	Steps        []string `json:"steps"`
	TablesNeeded []string `json:"tables_needed"`
	Approach     string   `json:"approach"`
}

// DegeneratePlan wraps unstructured planner text so the pipeline can continue.
func DegeneratePlan(raw string) Plan {
	return Plan{
		Steps:        []string{DegeneratePlanStep},
		TablesNeeded: []string{},
		Approach:     raw,
	}
}

// Clone deep-copies the plan.
func (p Plan) Clone() Plan {
	return Plan{
		Steps:        slices.Clone(p.Steps),
		TablesNeeded: slices.Clone(p.TablesNeeded),
		Approach:     p.Approach,
	}
}
