package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// SchemaNode loads the datasource schema with categorical values.
type SchemaNode struct {
	*BaseNode
	introspector datasource.SchemaIntrospector
}

func NewSchemaNode(introspector datasource.SchemaIntrospector, logger *zap.Logger) *SchemaNode {
	return &SchemaNode{
		BaseNode:     NewBaseNode(StageSchema, nil, logger),
		introspector: introspector,
	}
}

func (n *SchemaNode) Execute(ctx context.Context, s models.SessionState) (models.SessionState, error) {
	schema, err := n.introspector.Discover(ctx)
	if err != nil {
		return s, fmt.Errorf("schema discovery failed: %w", err)
	}

	n.Logger().Debug("Discovered schema", zap.Int("tables", len(schema)))

	out := s.Clone()
	out.Schema = schema
	return out, nil
}
