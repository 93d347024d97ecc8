package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdata/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

// GuardrailNode rejects statements containing write or DDL keywords.
// It is a lexical filter, not a parser.
type GuardrailNode struct {
	*BaseNode
	auditor *audit.SecurityAuditor
}

// NewGuardrailNode creates the guardrail. auditor may be nil.
func NewGuardrailNode(auditor *audit.SecurityAuditor, logger *zap.Logger) *GuardrailNode {
	return &GuardrailNode{
		BaseNode: NewBaseNode(StageGuardrail, nil, logger),
		auditor:  auditor,
	}
}

// Execute clears SQLQuery and records a safety-block error when a forbidden keyword is present.
func (n *GuardrailNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	keyword, blocked := sqlcheck.CheckForbiddenKeywords(s.SQLQuery)
	if !blocked {
		return s.Clone(), nil
	}

	metrics.GuardrailBlocksTotal.WithLabelValues(keyword).Inc()
	if n.auditor != nil {
		n.auditor.LogGuardrailBlock(ctx, threadIDFromContext(ctx), audit.GuardrailDetails{
			Keyword:   keyword,
			Statement: s.SQLQuery,
		})
	}

	out := s.Clone()
	out.ExecutionError = sqlcheck.SafetyBlockMessage(keyword)
	out.SQLQuery = ""
	return out, nil
}
