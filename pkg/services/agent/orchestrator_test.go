package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-askdata/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/repositories"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

const planReplyJSON = `{"steps": ["filter last month", "count"], "tables_needed": ["orders"], "approach": "COUNT with date filter"}`

type testHarness struct {
	orch         *Orchestrator
	mock         *llm.MockCompletionService
	executor     *fakeExecutor
	introspector *fakeIntrospector
	store        *repositories.MemorySessionStore
}

func newHarness(t *testing.T, script map[Stage][]string) *testHarness {
	t.Helper()

	h := &testHarness{
		mock:         scriptedLLM(t, script),
		executor:     newFakeExecutor(),
		introspector: &fakeIntrospector{schema: ordersSchema()},
		store:        repositories.NewMemorySessionStore(),
	}
	orch, err := NewOrchestrator(Config{
		LLM:          h.mock,
		Executor:     h.executor,
		Introspector: h.introspector,
		Store:        h.store,
		Dialect:      "SQLite",
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *testHarness) saved(t *testing.T, threadID string) *models.SessionState {
	t.Helper()
	state, err := h.store.Load(context.Background(), threadID)
	require.NoError(t, err)
	require.NotNil(t, state)
	return state
}

// Scenario: a count question returns one scalar and is shown without a chart.
func TestInvoke_ScalarAnswer(t *testing.T) {
	const countSQL = "SELECT COUNT(*) AS total FROM orders WHERE created_at >= date('now', 'start of month', '-1 month')"

	h := newHarness(t, map[Stage][]string{
		StageClassify: {"sql"},
		StagePlan:     {planReplyJSON},
		StageGenerate: {"```sql\n" + countSQL + "\n```"},
		StageFinalize: {`{"answer": "There were 42 orders last month.", "viz_type": "none"}`},
	})
	h.executor.results[countSQL] = []models.Row{row([]string{"total"}, int64(42))}

	result, err := h.orch.Invoke(context.Background(), "t-1", "how many orders last month")
	require.NoError(t, err)

	assert.Equal(t, "t-1", result.ThreadID)
	assert.Equal(t, "There were 42 orders last month.", result.FinalAnswer)
	require.NotNil(t, result.DataVizType)
	assert.Equal(t, models.VizTypeNone, *result.DataVizType)
	require.NotNil(t, result.LastSQLQuery)
	assert.Equal(t, countSQL, *result.LastSQLQuery)
	require.Len(t, result.QueryResult, 1)
	assert.Equal(t, []string{"total"}, result.QueryResult[0].Columns)

	assert.Equal(t, []string{countSQL}, h.executor.Calls())
	assert.Equal(t, []Stage{StageClassify, StagePlan, StageGenerate, StageFinalize}, stages(h.mock))

	state := h.saved(t, "t-1")
	assert.Equal(t, models.QuestionTypeSQL, state.QuestionType)
	assert.Equal(t, "1 rows; columns: total", state.LastResultSummary)
	assert.Equal(t, []models.ConversationTurn{
		{Role: models.TurnRoleUser, Content: "how many orders last month"},
		{Role: models.TurnRoleAssistant, Content: "There were 42 orders last month."},
	}, state.Messages)
}

// Scenario: a destructive statement never reaches the executor.
func TestInvoke_GuardrailBlocksDelete(t *testing.T) {
	h := newHarness(t, map[Stage][]string{
		StageClassify: {"sql"},
		StagePlan:     {planReplyJSON},
		StageGenerate: {"DELETE FROM orders WHERE status = 'open'"},
		StageRepair: {
			"DELETE FROM orders WHERE status = 'open'",
			"DELETE FROM orders",
			"DELETE FROM orders WHERE 1 = 1",
		},
	})

	result, err := h.orch.Invoke(context.Background(), "t-1", "remove the open orders")
	require.NoError(t, err)

	assert.Empty(t, h.executor.Calls())
	assert.Contains(t, result.FinalAnswer, "DELETE")
	assert.Equal(t, FailureAnswer(models.MaxRepairAttempts, sqlcheck.SafetyBlockMessage("DELETE")), result.FinalAnswer)
	require.NotNil(t, result.DataVizType)
	assert.Equal(t, models.VizTypeNone, *result.DataVizType)
	assert.Nil(t, result.LastSQLQuery)
	assert.Nil(t, result.QueryResult)

	state := h.saved(t, "t-1")
	assert.Equal(t, models.MaxRepairAttempts, state.RepairAttempts)
	assert.Empty(t, state.SQLQuery)
	assert.Contains(t, state.ExecutionError, "DELETE")
	assert.NotContains(t, stages(h.mock), StageFinalize, "failure narrative is templated")
}

// Scenario: the first statement fails and one repair fixes it.
func TestInvoke_RepairOnce(t *testing.T) {
	const broken = "SELECT status, SUM(amount) AS total FROM order GROUP BY status"
	const fixed = "SELECT status, SUM(amount) AS total FROM orders GROUP BY status"

	h := newHarness(t, map[Stage][]string{
		StageClassify: {"sql"},
		StagePlan:     {planReplyJSON},
		StageGenerate: {broken},
		StageRepair:   {"```sql\n" + fixed + "\n```"},
		StageFinalize: {`{"answer": "Paid orders dominate revenue.", "viz_type": "bar"}`},
	})
	h.executor.errors[broken] = errors.New(`near "order": syntax error`)
	h.executor.results[fixed] = []models.Row{
		row([]string{"status", "total"}, "open", 10.5),
		row([]string{"status", "total"}, "paid", 99.0),
	}

	result, err := h.orch.Invoke(context.Background(), "t-1", "revenue by status")
	require.NoError(t, err)

	assert.Equal(t, []string{broken, fixed}, h.executor.Calls())
	require.NotNil(t, result.LastSQLQuery)
	assert.Equal(t, fixed, *result.LastSQLQuery)
	assert.Equal(t, models.VizTypeBar, *result.DataVizType)

	state := h.saved(t, "t-1")
	assert.Equal(t, 1, state.RepairAttempts)
	assert.Empty(t, state.ExecutionError)
	assert.Equal(t, fixed, state.LastSQLQuery)

	repairPrompt := h.mock.Requests[3][1].Content
	assert.Contains(t, repairPrompt, broken)
	assert.Contains(t, repairPrompt, `near "order": syntax error`)
}

// Scenario: greetings are answered without touching the database.
func TestInvoke_DirectQuestion(t *testing.T) {
	h := newHarness(t, map[Stage][]string{
		StageClassify: {"direct"},
		StageFinalize: {"Hello! Ask me anything about your orders."},
	})

	result, err := h.orch.Invoke(context.Background(), "t-1", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello! Ask me anything about your orders.", result.FinalAnswer)
	require.NotNil(t, result.DataVizType)
	assert.Equal(t, models.VizTypeNone, *result.DataVizType)
	assert.Nil(t, result.LastSQLQuery)
	assert.Nil(t, result.QueryResult)

	assert.Zero(t, h.introspector.Calls())
	assert.Empty(t, h.executor.Calls())
	assert.Equal(t, []Stage{StageClassify, StageFinalize}, stages(h.mock))
}

func TestInvoke_KeepsQuestionAsTyped(t *testing.T) {
	h := newHarness(t, map[Stage][]string{
		StageClassify: {"direct"},
		StageFinalize: {"Hello!"},
	})
	const typed = "  hi there \n"

	_, err := h.orch.Invoke(context.Background(), "t-1", typed)
	require.NoError(t, err)

	assert.Equal(t, typed, h.saved(t, "t-1").Question)
	history, err := h.orch.History(context.Background(), "t-1")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, typed, history[0].Content)
}

func TestInvoke_RepairExhausted(t *testing.T) {
	const bad = "SELECT nope FROM orders"
	h := newHarness(t, map[Stage][]string{
		StageClassify: {"sql"},
		StagePlan:     {"not json at all"},
		StageGenerate: {bad},
		StageRepair:   {bad, bad, bad},
	})
	h.executor.errors[bad] = errors.New("no such column: nope")

	result, err := h.orch.Invoke(context.Background(), "t-1", "show nope")
	require.NoError(t, err)

	assert.Len(t, h.executor.Calls(), 1+models.MaxRepairAttempts)
	assert.Equal(t, "Unable to retrieve data after 3 repair attempt(s). Last error: no such column: nope", result.FinalAnswer)

	state := h.saved(t, "t-1")
	require.NotNil(t, state.Plan)
	assert.Equal(t, []string{models.DegeneratePlanStep}, state.Plan.Steps)
}

func TestInvoke_FollowUpCarriesContext(t *testing.T) {
	const firstSQL = "SELECT COUNT(*) AS total FROM orders"
	const secondSQL = "SELECT COUNT(*) AS total FROM orders WHERE status = 'paid'"

	h := newHarness(t, map[Stage][]string{
		StageResolve:  {"How many orders are paid?"},
		StageClassify: {"sql", "sql"},
		StagePlan:     {planReplyJSON, planReplyJSON},
		StageGenerate: {firstSQL, secondSQL},
		StageFinalize: {
			`{"answer": "42 orders.", "viz_type": "none"}`,
			`{"answer": "30 are paid.", "viz_type": "none"}`,
		},
	})
	h.executor.results[firstSQL] = []models.Row{row([]string{"total"}, int64(42))}
	h.executor.results[secondSQL] = []models.Row{row([]string{"total"}, int64(30))}

	ctx := context.Background()
	_, err := h.orch.Invoke(ctx, "t-1", "How many orders?")
	require.NoError(t, err)
	result, err := h.orch.Invoke(ctx, "t-1", "and paid?")
	require.NoError(t, err)

	assert.Equal(t, "30 are paid.", result.FinalAnswer)

	// The resolver saw the first turn's SQL and summary.
	resolvePrompt := h.mock.Requests[4][1].Content
	assert.Contains(t, resolvePrompt, firstSQL)
	assert.Contains(t, resolvePrompt, "1 rows; columns: total")

	state := h.saved(t, "t-1")
	assert.Equal(t, "How many orders are paid?", state.ResolvedQuestion)
	require.Len(t, state.Messages, 4)
	assert.Equal(t, "and paid?", state.Messages[2].Content)

	// A different thread starts fresh.
	h2 := h.orch
	_, err = h2.History(ctx, "t-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInvoke_StageFailureBecomesApology(t *testing.T) {
	h := newHarness(t, map[Stage][]string{}) // every completion fails

	result, err := h.orch.Invoke(context.Background(), "t-1", "how many orders?")
	require.NoError(t, err)

	assert.Contains(t, result.FinalAnswer, "Sorry, I could not complete this request: classify:")
	assert.Equal(t, models.VizTypeNone, *result.DataVizType)

	state := h.saved(t, "t-1")
	require.Len(t, state.Messages, 2)
	assert.Equal(t, models.TurnRoleUser, state.Messages[0].Role)
	assert.Equal(t, result.FinalAnswer, state.Messages[1].Content)
}

func TestInvoke_ResolveFailureStillLogsQuestion(t *testing.T) {
	h := newHarness(t, map[Stage][]string{})
	prior := &models.SessionState{
		Messages: []models.ConversationTurn{
			{Role: models.TurnRoleUser, Content: "hi"},
			{Role: models.TurnRoleAssistant, Content: "hello"},
		},
	}
	require.NoError(t, h.store.Save(context.Background(), "t-1", prior))

	result, err := h.orch.Invoke(context.Background(), "t-1", "and now?")
	require.NoError(t, err)
	assert.Contains(t, result.FinalAnswer, "resolve:")

	state := h.saved(t, "t-1")
	require.Len(t, state.Messages, 4)
	assert.Equal(t, "and now?", state.Messages[2].Content)
}

func TestInvoke_SchemaFailure(t *testing.T) {
	h := newHarness(t, map[Stage][]string{StageClassify: {"sql"}})
	h.introspector.err = errors.New("unable to open database file")

	result, err := h.orch.Invoke(context.Background(), "t-1", "orders?")
	require.NoError(t, err)
	assert.Equal(t, ApologyAnswer(StageSchema, errors.New("schema discovery failed: unable to open database file")), result.FinalAnswer)
}

func TestInvoke_Timeout(t *testing.T) {
	mock := llm.NewMockCompletionService()
	mock.CompleteFunc = func(ctx context.Context, _ []llm.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	store := repositories.NewMemorySessionStore()
	orch, err := NewOrchestrator(Config{
		LLM:            mock,
		Executor:       newFakeExecutor(),
		Introspector:   &fakeIntrospector{},
		Store:          store,
		RequestTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	result, err := orch.Invoke(context.Background(), "t-1", "slow question")
	require.NoError(t, err)
	assert.Contains(t, result.FinalAnswer, "request timed out")

	// The apology is saved even though the turn's context expired.
	assert.Equal(t, 1, store.Len())
}

func TestInvoke_InvalidInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Invoke(context.Background(), "", "question")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.orch.Invoke(context.Background(), "t-1", "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Zero(t, h.mock.CompleteCalls)
}

type failingStore struct {
	repositories.SessionStore
}

func (failingStore) Load(ctx context.Context, threadID string) (*models.SessionState, error) {
	return nil, errors.New("connection refused")
}

func TestInvoke_StoreFailure(t *testing.T) {
	orch, err := NewOrchestrator(Config{
		LLM:          llm.NewMockCompletionService(),
		Executor:     newFakeExecutor(),
		Introspector: &fakeIntrospector{},
		Store:        failingStore{},
	})
	require.NoError(t, err)

	_, err = orch.Invoke(context.Background(), "t-1", "question")
	assert.ErrorContains(t, err, "failed to load session")
}

func TestInvoke_AuditsSuspiciousQuestion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	orch, err := NewOrchestrator(Config{
		LLM: scriptedLLM(t, map[Stage][]string{
			StageClassify: {"direct"},
			StageFinalize: {"I can only answer questions about the data."},
		}),
		Executor:     newFakeExecutor(),
		Introspector: &fakeIntrospector{},
		Store:        repositories.NewMemorySessionStore(),
		Auditor:      audit.NewSecurityAuditor(zap.New(core)),
	})
	require.NoError(t, err)

	_, err = orch.Invoke(context.Background(), "t-1", "1 UNION SELECT * FROM passwords")
	require.NoError(t, err)

	entries := logs.FilterMessage("SQL injection pattern in user input").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "t-1", entries[0].ContextMap()["thread_id"])
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Config{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestForget(t *testing.T) {
	h := newHarness(t, map[Stage][]string{
		StageClassify: {"direct"},
		StageFinalize: {"hello"},
	})
	ctx := context.Background()

	_, err := h.orch.Invoke(ctx, "t-1", "hi")
	require.NoError(t, err)

	history, err := h.orch.History(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, h.orch.Forget(ctx, "t-1"))
	_, err = h.orch.History(ctx, "t-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
