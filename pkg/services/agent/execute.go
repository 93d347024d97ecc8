package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// ExecuteNode runs the candidate statement against the datasource.
type ExecuteNode struct {
	*BaseNode
	executor datasource.QueryExecutor
	auditor  *audit.SecurityAuditor
}

// NewExecuteNode creates the executor node. auditor may be nil.
func NewExecuteNode(executor datasource.QueryExecutor, auditor *audit.SecurityAuditor, logger *zap.Logger) *ExecuteNode {
	return &ExecuteNode{
		BaseNode: NewBaseNode(StageExecute, nil, logger),
		executor: executor,
		auditor:  auditor,
	}
}

// Execute never returns an error: datasource failures become ExecutionError
// so the repair loop can act on them. An empty SQLQuery is a no-op.
func (n *ExecuteNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	if s.SQLQuery == "" {
		return s.Clone(), nil
	}

	out := s.Clone()
	rows, err := n.executor.Execute(ctx, s.SQLQuery)
	if err != nil {
		metrics.QueryExecutionsTotal.WithLabelValues("error").Inc()
		n.Logger().Debug("Query execution failed", zap.Error(err))
		n.audit(ctx, s.SQLQuery, 0, err.Error())

		out.ExecutionError = err.Error()
		out.QueryResult = nil
		return out, nil
	}

	metrics.QueryExecutionsTotal.WithLabelValues("ok").Inc()
	n.audit(ctx, s.SQLQuery, len(rows), "")

	if rows == nil {
		rows = []models.Row{}
	}
	out.QueryResult = rows
	out.ExecutionError = ""
	out.LastSQLQuery = s.SQLQuery
	return out, nil
}

func (n *ExecuteNode) audit(ctx context.Context, statement string, rowCount int, errText string) {
	if n.auditor == nil {
		return
	}
	n.auditor.LogQueryExecution(ctx, threadIDFromContext(ctx), audit.ExecutionDetails{
		Statement: statement,
		RowCount:  rowCount,
		Error:     errText,
	})
}
