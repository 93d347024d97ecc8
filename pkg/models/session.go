package models

import (
	"maps"
	"slices"
	"strings"
)

// MaxRepairAttempts is the hard ceiling on repair cycles per turn.
const MaxRepairAttempts = 3

// ResultSampleRows is the number of result rows shown to the finalizer.
const ResultSampleRows = 50

// ============================================================================
// Conversation Turns
// ============================================================================

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one entry in a thread's append-only turn log.
type ConversationTurn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// ============================================================================
// Question Type
// ============================================================================

// QuestionType is the classifier's decision about whether a question needs data.
type QuestionType string

const (
	QuestionTypeSQL    QuestionType = "sql"
	QuestionTypeDirect QuestionType = "direct"
)

// ParseQuestionType maps raw classifier output onto a QuestionType.
// Input is trimmed and lower-cased. Anything other than "sql" or "direct"
// resolves to QuestionTypeSQL so an ambiguous answer never skips the data.
func ParseQuestionType(raw string) QuestionType {
	switch QuestionType(strings.ToLower(strings.TrimSpace(raw))) {
	case QuestionTypeDirect:
		return QuestionTypeDirect
	case QuestionTypeSQL:
		return QuestionTypeSQL
	default:
		return QuestionTypeSQL
	}
}

// ============================================================================
// Visualization
// ============================================================================

// VizType is the rendering hint returned with an answer.
type VizType string

const (
	VizTypeTable VizType = "table"
	VizTypeBar   VizType = "bar"
	VizTypeLine  VizType = "line"
	VizTypePie   VizType = "pie"
	VizTypeNone  VizType = "none"
)

// ValidVizTypes contains all valid visualization hints.
var ValidVizTypes = []VizType{
	VizTypeTable,
	VizTypeBar,
	VizTypeLine,
	VizTypePie,
	VizTypeNone,
}

// ParseVizType matches raw text against the known hints, case-insensitively.
// ok is false when the text is not a known hint.
func ParseVizType(raw string) (VizType, bool) {
	v := VizType(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(ValidVizTypes, v) {
		return v, true
	}
	return "", false
}

// ============================================================================
// Session State
// ============================================================================

// SessionState is the record threaded through the pipeline stages for one
// invocation. Stages receive it by value and return an updated copy.
type SessionState struct {
	Question         string       `json:"question"`
	ResolvedQuestion string       `json:"resolved_question,omitempty"`
	QuestionType     QuestionType `json:"question_type,omitempty"`
	RequiresSQL      bool         `json:"requires_sql"`
	Schema           Schema       `json:"schema,omitempty"`
	Plan             *Plan        `json:"plan,omitempty"`

	// SQLQuery is the current candidate; empty before generation or after a guardrail block.
	SQLQuery string `json:"sql_query,omitempty"`
	// LastSQLQuery is the most recent statement that executed without error.
	LastSQLQuery string `json:"last_sql_query,omitempty"`
	// QueryResult is nil when no execution has succeeded this turn.
	QueryResult    []Row  `json:"query_result,omitempty"`
	ExecutionError string `json:"execution_error,omitempty"`
	RepairAttempts int    `json:"repair_attempts"`

	DataVizType VizType `json:"data_viz_type,omitempty"`
	FinalAnswer string  `json:"final_answer,omitempty"`

	Messages []ConversationTurn `json:"messages,omitempty"`

	// LastResultSummary describes the outcome of this turn for the next turn's resolver.
	LastResultSummary string `json:"last_result_summary,omitempty"`

	// PreviousSQLQuery and PreviousResultSummary carry the last known SQL context
	// from earlier turns of the thread into the resolver.
	PreviousSQLQuery      string `json:"previous_sql_query,omitempty"`
	PreviousResultSummary string `json:"previous_result_summary,omitempty"`
}

// NewSessionState builds the state for a fresh invocation. Only the turn log
// and the prior SQL context are carried over from the checkpoint; everything
// else is recomputed by the pipeline.
func NewSessionState(question string, prior *SessionState) SessionState {
	s := SessionState{Question: question}
	if prior == nil {
		return s
	}

	s.Messages = slices.Clone(prior.Messages)

	s.PreviousSQLQuery = prior.LastSQLQuery
	if s.PreviousSQLQuery == "" {
		s.PreviousSQLQuery = prior.PreviousSQLQuery
	}
	s.PreviousResultSummary = prior.LastResultSummary
	if s.PreviousResultSummary == "" {
		s.PreviousResultSummary = prior.PreviousResultSummary
	}
	return s
}

// Clone returns a deep copy so a stage can update its result without
// aliasing slices or maps held by the previous state.
func (s SessionState) Clone() SessionState {
	out := s
	out.Messages = slices.Clone(s.Messages)
	out.Schema = s.Schema.Clone()
	if s.Plan != nil {
		p := s.Plan.Clone()
		out.Plan = &p
	}
	if s.QueryResult != nil {
		out.QueryResult = make([]Row, len(s.QueryResult))
		for i, r := range s.QueryResult {
			out.QueryResult[i] = r.Clone()
		}
	}
	return out
}

// AppendTurn returns a copy of the state with one more turn in the log.
func (s SessionState) AppendTurn(role TurnRole, content string) SessionState {
	out := s.Clone()
	out.Messages = append(out.Messages, ConversationTurn{Role: role, Content: content})
	return out
}

// EffectiveQuestion returns the resolved question if set, falling back to the raw one.
func (s SessionState) EffectiveQuestion() string {
	if s.ResolvedQuestion != "" {
		return s.ResolvedQuestion
	}
	return s.Question
}

// ============================================================================
// Turn Result
// ============================================================================

// TurnResult is what one invocation hands back to the consumer.
type TurnResult struct {
	ThreadID     string   `json:"thread_id"`
	FinalAnswer  string   `json:"final_answer"`
	LastSQLQuery *string  `json:"last_sql_query"`
	DataVizType  *VizType `json:"data_viz_type"`
	QueryResult  []Row    `json:"query_result"`
}

// ToTurnResult projects the consumer-facing fields out of the final state.
func (s SessionState) ToTurnResult(threadID string) *TurnResult {
	r := &TurnResult{
		ThreadID:    threadID,
		FinalAnswer: s.FinalAnswer,
		QueryResult: s.QueryResult,
	}
	if s.LastSQLQuery != "" {
		sql := s.LastSQLQuery
		r.LastSQLQuery = &sql
	}
	if s.DataVizType != "" {
		viz := s.DataVizType
		r.DataVizType = &viz
	}
	return r
}

// cloneCategorical deep-copies a categorical value map.
func cloneCategorical(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range maps.All(in) {
		out[k] = slices.Clone(v)
	}
	return out
}
