package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/repositories"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

// maxTransitions bounds a single turn. The longest legal path is
// resolve, classify, schema, plan, generate, then guardrail and execute
// once plus once per repair, then finalize.
const maxTransitions = 5 + 3*(models.MaxRepairAttempts+1) + 1

// Config holds the collaborators of an Orchestrator.
type Config struct {
	LLM          llm.CompletionService
	Executor     datasource.QueryExecutor
	Introspector datasource.SchemaIntrospector
	Store        repositories.SessionStore

	// Dialect is named in generation and repair prompts, e.g. "SQLite".
	Dialect string

	// Auditor records suspicious input, guardrail blocks and executions. Optional.
	Auditor *audit.SecurityAuditor

	// RequestTimeout bounds one turn. Zero means no deadline beyond the caller's.
	RequestTimeout time.Duration

	Logger *zap.Logger
}

// Orchestrator runs the pipeline for one question at a time per call and
// checkpoints the resulting state under the thread ID.
type Orchestrator struct {
	nodes   map[Stage]Node
	store   repositories.SessionStore
	auditor *audit.SecurityAuditor
	timeout time.Duration
	logger  *zap.Logger
}

// NewOrchestrator wires the nodes.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.LLM == nil:
		return nil, fmt.Errorf("%w: completion service is required", apperrors.ErrInvalidInput)
	case cfg.Executor == nil:
		return nil, fmt.Errorf("%w: query executor is required", apperrors.ErrInvalidInput)
	case cfg.Introspector == nil:
		return nil, fmt.Errorf("%w: schema introspector is required", apperrors.ErrInvalidInput)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: session store is required", apperrors.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("agent")

	nodes := []Node{
		NewResolveNode(cfg.LLM, logger),
		NewClassifyNode(cfg.LLM, logger),
		NewSchemaNode(cfg.Introspector, logger),
		NewPlanNode(cfg.LLM, logger),
		NewGenerateNode(cfg.LLM, cfg.Dialect, logger),
		NewGuardrailNode(cfg.Auditor, logger),
		NewExecuteNode(cfg.Executor, cfg.Auditor, logger),
		NewRepairNode(cfg.LLM, cfg.Dialect, logger),
		NewFinalizeNode(cfg.LLM, logger),
	}

	o := &Orchestrator{
		nodes:   make(map[Stage]Node, len(nodes)),
		store:   cfg.Store,
		auditor: cfg.Auditor,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
	for _, n := range nodes {
		o.nodes[n.Name()] = n
	}
	return o, nil
}

// Invoke answers question in the context of threadID. Stage failures do not
// return an error: they end the turn with an apology that is saved like any
// other answer. Errors are returned only for invalid arguments and session
// store failures.
//
// Concurrent calls for the same thread are not serialized; the last Save wins.
func (o *Orchestrator) Invoke(ctx context.Context, threadID, question string) (*models.TurnResult, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", apperrors.ErrInvalidInput)
	}
	// The question is stored as typed; only its emptiness is judged trimmed.
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidInput)
	}

	start := time.Now()
	saveCtx := context.WithoutCancel(ctx)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ctx = withThreadID(ctx, threadID)

	prior, err := o.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	o.checkInput(ctx, threadID, question)

	state, failedStage := o.run(ctx, threadID, models.NewSessionState(question, prior))

	if err := o.store.Save(saveCtx, threadID, &state); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	outcome := turnOutcome(state, failedStage)
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	o.logger.Info("Answered question",
		zap.String("thread_id", threadID),
		zap.String("outcome", outcome),
		zap.String("question_type", string(state.QuestionType)),
		zap.Int("repair_attempts", state.RepairAttempts),
		zap.Int("rows", len(state.QueryResult)),
		zap.Duration("elapsed", time.Since(start)))

	return state.ToTurnResult(threadID), nil
}

// run walks the state machine from StageResolve to StageEnd. It returns the
// final state and the stage that failed, if any.
func (o *Orchestrator) run(ctx context.Context, threadID string, state models.SessionState) (models.SessionState, Stage) {
	stage := StageResolve
	for i := 0; stage != StageEnd; i++ {
		if i >= maxTransitions {
			err := fmt.Errorf("exceeded %d transitions", maxTransitions)
			return o.apologize(state, stage, err), stage
		}

		node, ok := o.nodes[stage]
		if !ok {
			return o.apologize(state, stage, fmt.Errorf("no node for stage %q", stage)), stage
		}

		stageStart := time.Now()
		next, err := node.Execute(llm.WithStageContext(ctx, threadID, string(stage)), state)
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			metrics.StageErrorsTotal.WithLabelValues(string(stage)).Inc()
			o.logger.Error("Stage failed",
				zap.String("thread_id", threadID),
				zap.String("stage", string(stage)),
				zap.Error(err))
			return o.apologize(state, stage, err), stage
		}

		state = next
		stage = Next(stage, state)
	}
	return state, ""
}

// apologize ends a turn whose stage failed. The user question is logged even
// when the resolver itself failed so the thread history stays paired.
func (o *Orchestrator) apologize(s models.SessionState, stage Stage, err error) models.SessionState {
	out := s.Clone()
	if stage == StageResolve {
		out = out.AppendTurn(models.TurnRoleUser, s.Question)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("request timed out: %w", err)
	}
	out.FinalAnswer = ApologyAnswer(stage, err)
	out.DataVizType = models.VizTypeNone
	return out.AppendTurn(models.TurnRoleAssistant, out.FinalAnswer)
}

// ApologyAnswer is the answer recorded when a stage fails.
func ApologyAnswer(stage Stage, err error) string {
	return fmt.Sprintf("Sorry, I could not complete this request: %s: %v", stage, err)
}

// checkInput audits questions that look like SQL injection. It never blocks.
func (o *Orchestrator) checkInput(ctx context.Context, threadID, question string) {
	if o.auditor == nil {
		return
	}
	if result := sqlcheck.CheckTextForInjection("question", question); result != nil {
		o.auditor.LogInjectionAttempt(ctx, threadID, audit.InjectionDetails{
			Source:      result.Source,
			Text:        result.Text,
			Fingerprint: result.Fingerprint,
		})
	}
}

func turnOutcome(s models.SessionState, failedStage Stage) string {
	switch {
	case failedStage != "":
		return metrics.OutcomeError
	case s.QuestionType == models.QuestionTypeDirect:
		return metrics.OutcomeDirect
	case s.ExecutionError != "" && len(s.QueryResult) == 0:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeAnswered
	}
}

// History returns the stored turn log of a thread. An unknown thread yields
// an error wrapping apperrors.ErrNotFound.
func (o *Orchestrator) History(ctx context.Context, threadID string) ([]models.ConversationTurn, error) {
	state, err := o.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("thread %q: %w", threadID, apperrors.ErrNotFound)
	}
	return state.Messages, nil
}

// Forget deletes a thread's stored state.
func (o *Orchestrator) Forget(ctx context.Context, threadID string) error {
	if err := o.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
