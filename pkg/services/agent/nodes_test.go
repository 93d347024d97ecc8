package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

func stageCtx(stage Stage) context.Context {
	return llm.WithStageContext(withThreadID(context.Background(), "t-1"), "t-1", string(stage))
}

func TestResolveNode_FirstTurnSkipsModel(t *testing.T) {
	mock := llm.NewMockCompletionService()
	node := NewResolveNode(mock, zap.NewNop())

	in := models.NewSessionState("How many orders?", nil)
	out, err := node.Execute(stageCtx(StageResolve), in)
	require.NoError(t, err)

	assert.Equal(t, 0, mock.CompleteCalls)
	assert.Equal(t, "How many orders?", out.ResolvedQuestion)
	assert.Equal(t, []models.ConversationTurn{{Role: models.TurnRoleUser, Content: "How many orders?"}}, out.Messages)
	assert.Empty(t, in.Messages, "input state must not change")
}

func TestResolveNode_FollowUpUsesModel(t *testing.T) {
	mock := llm.NewMockCompletionService("How many orders were paid last month?")
	node := NewResolveNode(mock, zap.NewNop())

	prior := &models.SessionState{
		LastSQLQuery:      "SELECT COUNT(*) FROM orders",
		LastResultSummary: "1 rows; columns: n",
		Messages: []models.ConversationTurn{
			{Role: models.TurnRoleUser, Content: "How many orders last month?"},
			{Role: models.TurnRoleAssistant, Content: "42."},
		},
	}
	out, err := node.Execute(stageCtx(StageResolve), models.NewSessionState("and paid ones?", prior))
	require.NoError(t, err)

	assert.Equal(t, "How many orders were paid last month?", out.ResolvedQuestion)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "and paid ones?", out.Messages[2].Content, "raw question is logged, not the rewrite")

	prompt := mock.LastRequest()[1].Content
	assert.Contains(t, prompt, "SELECT COUNT(*) FROM orders")
	assert.Contains(t, prompt, "1 rows; columns: n")
	assert.Contains(t, prompt, "and paid ones?")
}

func TestClassifyNode_Fallback(t *testing.T) {
	tests := []struct {
		reply string
		want  models.QuestionType
	}{
		{"sql", models.QuestionTypeSQL},
		{"  DIRECT \n", models.QuestionTypeDirect},
		{"Direct", models.QuestionTypeDirect},
		{"maybe", models.QuestionTypeSQL},
		{"", models.QuestionTypeSQL},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			node := NewClassifyNode(llm.NewMockCompletionService(tt.reply), zap.NewNop())
			out, err := node.Execute(stageCtx(StageClassify), models.SessionState{Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.QuestionType)
			assert.Equal(t, tt.want == models.QuestionTypeSQL, out.RequiresSQL)
		})
	}
}

func TestSchemaNode_Error(t *testing.T) {
	node := NewSchemaNode(&fakeIntrospector{err: errors.New("database is locked")}, zap.NewNop())
	_, err := node.Execute(stageCtx(StageSchema), models.SessionState{})
	assert.ErrorContains(t, err, "database is locked")
}

func TestPlanNode_Structured(t *testing.T) {
	reply := "```json\n{\"steps\": [\"filter\", \"count\"], \"tables_needed\": \"orders\", \"approach\": \"aggregate\"}\n```"
	node := NewPlanNode(llm.NewMockCompletionService(reply), zap.NewNop())

	out, err := node.Execute(stageCtx(StagePlan), models.SessionState{Question: "q", Schema: ordersSchema()})
	require.NoError(t, err)
	require.NotNil(t, out.Plan)
	assert.Equal(t, []string{"filter", "count"}, out.Plan.Steps)
	assert.Equal(t, []string{"orders"}, out.Plan.TablesNeeded)
	assert.Equal(t, "aggregate", out.Plan.Approach)
}

func TestPlanNode_RawFallsBackToDegeneratePlan(t *testing.T) {
	node := NewPlanNode(llm.NewMockCompletionService("Just count the orders table."), zap.NewNop())

	out, err := node.Execute(stageCtx(StagePlan), models.SessionState{Question: "q"})
	require.NoError(t, err)
	require.NotNil(t, out.Plan)
	assert.Equal(t, models.DegeneratePlan("Just count the orders table."), *out.Plan)
}

func TestPlanNode_ProseWithStrayObjectIsDegenerate(t *testing.T) {
	reply := `Count orders filtered by {"status": "paid"} over last month.`
	node := NewPlanNode(llm.NewMockCompletionService(reply), zap.NewNop())

	out, err := node.Execute(stageCtx(StagePlan), models.SessionState{Question: "q"})
	require.NoError(t, err)
	require.NotNil(t, out.Plan)
	assert.Equal(t, models.DegeneratePlan(reply), *out.Plan)
}

func TestPlanNode_PlanAfterBracketedLabel(t *testing.T) {
	reply := `Plan [1]: {"steps": ["count"], "tables_needed": ["orders"], "approach": "COUNT(*)"}`
	node := NewPlanNode(llm.NewMockCompletionService(reply), zap.NewNop())

	out, err := node.Execute(stageCtx(StagePlan), models.SessionState{Question: "q"})
	require.NoError(t, err)
	require.NotNil(t, out.Plan)
	assert.Equal(t, []string{"count"}, out.Plan.Steps)
	assert.Equal(t, []string{"orders"}, out.Plan.TablesNeeded)
	assert.Equal(t, "COUNT(*)", out.Plan.Approach)
}

func TestGenerateNode_StripsFenceAndResetsRepairs(t *testing.T) {
	node := NewGenerateNode(llm.NewMockCompletionService("```sql\nSELECT 1\n```"), "SQLite", zap.NewNop())

	out, err := node.Execute(stageCtx(StageGenerate), models.SessionState{RepairAttempts: 2, ExecutionError: "old"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out.SQLQuery)
	assert.Zero(t, out.RepairAttempts)
	assert.Empty(t, out.ExecutionError)
}

func TestGuardrailNode(t *testing.T) {
	tests := []struct {
		sql     string
		blocked bool
		keyword string
	}{
		{"SELECT * FROM orders", false, ""},
		{"SELECT updated_at, deleted FROM orders", false, ""},
		{"select * from t; drop table t", true, "DROP"},
		{"DELETE FROM orders", true, "DELETE"},
		{"SELECT 'x' AS update FROM t", true, "UPDATE"},
		{"DELETE;", false, ""},
		{"INSERT INTO t SELECT * FROM u; DROP TABLE u", true, "DROP"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			node := NewGuardrailNode(nil, zap.NewNop())
			out, err := node.Execute(stageCtx(StageGuardrail), models.SessionState{SQLQuery: tt.sql})
			require.NoError(t, err)
			if !tt.blocked {
				assert.Equal(t, tt.sql, out.SQLQuery)
				assert.Empty(t, out.ExecutionError)
				return
			}
			assert.Empty(t, out.SQLQuery)
			assert.Equal(t, sqlcheck.SafetyBlockMessage(tt.keyword), out.ExecutionError)
		})
	}
}

func TestGuardrailNode_Audits(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	node := NewGuardrailNode(audit.NewSecurityAuditor(zap.New(core)), zap.NewNop())

	_, err := node.Execute(stageCtx(StageGuardrail), models.SessionState{SQLQuery: "TRUNCATE orders"})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "TRUNCATE", entry.ContextMap()["keyword"])
	assert.Equal(t, "t-1", entry.ContextMap()["thread_id"])
}

func TestExecuteNode_EmptySQLIsNoOp(t *testing.T) {
	exec := newFakeExecutor()
	node := NewExecuteNode(exec, nil, zap.NewNop())

	in := models.SessionState{ExecutionError: "Safety block", RepairAttempts: 1}
	out, err := node.Execute(stageCtx(StageExecute), in)
	require.NoError(t, err)

	assert.Empty(t, exec.Calls())
	assert.Equal(t, in, out)
}

func TestExecuteNode_Success(t *testing.T) {
	exec := newFakeExecutor()
	exec.results["SELECT 1 AS one"] = []models.Row{row([]string{"one"}, int64(1))}
	node := NewExecuteNode(exec, nil, zap.NewNop())

	out, err := node.Execute(stageCtx(StageExecute), models.SessionState{SQLQuery: "SELECT 1 AS one", ExecutionError: "stale"})
	require.NoError(t, err)

	assert.Len(t, out.QueryResult, 1)
	assert.Empty(t, out.ExecutionError)
	assert.Equal(t, "SELECT 1 AS one", out.LastSQLQuery)
}

func TestExecuteNode_ZeroRowsIsNotAbsent(t *testing.T) {
	exec := newFakeExecutor()
	exec.results["SELECT * FROM orders WHERE 0"] = nil
	node := NewExecuteNode(exec, nil, zap.NewNop())

	out, err := node.Execute(stageCtx(StageExecute), models.SessionState{SQLQuery: "SELECT * FROM orders WHERE 0"})
	require.NoError(t, err)
	assert.NotNil(t, out.QueryResult)
	assert.Empty(t, out.QueryResult)
}

func TestExecuteNode_FailureKeepsLastSQL(t *testing.T) {
	exec := newFakeExecutor()
	exec.errors["SELECT nope"] = errors.New("no such column: nope")
	node := NewExecuteNode(exec, nil, zap.NewNop())

	in := models.SessionState{
		SQLQuery:     "SELECT nope",
		LastSQLQuery: "SELECT 1",
		QueryResult:  []models.Row{row([]string{"one"}, int64(1))},
	}
	out, err := node.Execute(stageCtx(StageExecute), in)
	require.NoError(t, err)

	assert.Equal(t, "no such column: nope", out.ExecutionError)
	assert.Nil(t, out.QueryResult)
	assert.Equal(t, "SELECT 1", out.LastSQLQuery)
}

func TestRepairNode_UsesLastSQLWhenGuardrailCleared(t *testing.T) {
	mock := llm.NewMockCompletionService("SELECT id FROM orders")
	node := NewRepairNode(mock, "SQLite", zap.NewNop())

	in := models.SessionState{
		Question:       "q",
		LastSQLQuery:   "SELECT idd FROM orders",
		RepairAttempts: 1,
	}
	out, err := node.Execute(stageCtx(StageRepair), in)
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM orders", out.SQLQuery)
	assert.Equal(t, 2, out.RepairAttempts)
	assert.Empty(t, out.ExecutionError)

	prompt := mock.LastRequest()[1].Content
	assert.Contains(t, prompt, "SELECT idd FROM orders")
	assert.Contains(t, prompt, unknownError)
}

func TestRepairNode_ErrorLeavesStateUntouched(t *testing.T) {
	mock := llm.NewMockCompletionService()
	mock.CompleteFunc = func(ctx context.Context, _ []llm.Message) (string, error) {
		return "", llm.NewError(llm.ErrorTypeUnknown, "boom", false, nil)
	}
	node := NewRepairNode(mock, "SQLite", zap.NewNop())

	in := models.SessionState{SQLQuery: "SELECT x", ExecutionError: "bad", RepairAttempts: 1}
	out, err := node.Execute(stageCtx(StageRepair), in)
	require.Error(t, err)
	assert.Equal(t, in, out)
}

func TestParseFinalizerReply(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAnswer string
		wantViz    models.VizType
	}{
		{"structured", `{"answer": " 42 orders. ", "viz_type": "none"}`, "42 orders.", models.VizTypeNone},
		{"fenced", "```json\n{\"answer\": \"Top 5\", \"viz_type\": \"BAR\"}\n```", "Top 5", models.VizTypeBar},
		{"unknown viz", `{"answer": "ok", "viz_type": "scatter"}`, "ok", models.VizTypeTable},
		{"missing viz", `{"answer": "ok"}`, "ok", models.VizTypeTable},
		{"raw text", "There were 42 orders.", "There were 42 orders.", models.VizTypeTable},
		{"prose around answer", `Result [ok]: {"answer": "7", "viz_type": "bar"}`, "7", models.VizTypeBar},
		{"empty answer", `{"answer": "", "viz_type": "pie"}`, `{"answer": "", "viz_type": "pie"}`, models.VizTypeTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, viz := parseFinalizerReply(tt.raw)
			assert.Equal(t, tt.wantAnswer, answer)
			assert.Equal(t, tt.wantViz, viz)
		})
	}
}

func TestFinalizeNode_FailureSkipsModel(t *testing.T) {
	mock := llm.NewMockCompletionService()
	node := NewFinalizeNode(mock, zap.NewNop())

	out, err := node.Execute(stageCtx(StageFinalize), models.SessionState{
		QuestionType:   models.QuestionTypeSQL,
		ExecutionError: "no such table: order",
		RepairAttempts: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, mock.CompleteCalls)
	assert.Equal(t, "Unable to retrieve data after 3 repair attempt(s). Last error: no such table: order", out.FinalAnswer)
	assert.Equal(t, models.VizTypeNone, out.DataVizType)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, models.TurnRoleAssistant, out.Messages[0].Role)
}

func TestFinalizeNode_ZeroRowsUsesResultsArm(t *testing.T) {
	mock := llm.NewMockCompletionService(`{"answer": "No orders matched.", "viz_type": "table"}`)
	node := NewFinalizeNode(mock, zap.NewNop())

	out, err := node.Execute(stageCtx(StageFinalize), models.SessionState{
		QuestionType: models.QuestionTypeSQL,
		LastSQLQuery: "SELECT * FROM orders WHERE 0",
		QueryResult:  []models.Row{},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, mock.CompleteCalls)
	assert.Equal(t, "No orders matched.", out.FinalAnswer)
	assert.Equal(t, "0 rows", out.LastResultSummary)
	assert.Contains(t, mock.LastRequest()[1].Content, "0 rows total")
}

func TestResultSummary(t *testing.T) {
	rows := []models.Row{
		row([]string{"status", "n"}, "open", int64(3)),
		row([]string{"status", "n"}, "paid", int64(5)),
	}
	assert.Equal(t, "2 rows; columns: status, n", ResultSummary(rows))
}
