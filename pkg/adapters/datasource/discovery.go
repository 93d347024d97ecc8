package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// DiscoverSchema walks a catalog and builds the schema handed to the planner.
//
// Every text-typed, non-primary-key column is probed for its distinct non-null
// values with a single query bounded at threshold+1 rows. A column is listed
// as categorical only when the probe returns between 1 and threshold values;
// columns over the threshold, empty columns, and columns whose probe fails are
// omitted rather than partially listed.
func DiscoverSchema(ctx context.Context, catalog Catalog, threshold int, logger *zap.Logger) (models.Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tables, err := catalog.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := make(models.Schema, len(tables))
	for _, table := range tables {
		columns, err := catalog.ListColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", table, err)
		}

		info := models.TableSchema{
			Columns:     columns,
			Categorical: map[string][]string{},
		}

		for _, col := range columns {
			if !col.IsCategoricalCandidate() {
				continue
			}

			values, err := catalog.DistinctValues(ctx, table, col.Name, threshold+1)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("Categorical probe failed, column omitted",
					zap.String("table", table),
					zap.String("column", col.Name),
					zap.Error(err))
				continue
			}
			if len(values) == 0 || len(values) > threshold {
				continue
			}
			info.Categorical[col.Name] = values
		}

		schema[table] = info
	}

	logger.Debug("Schema discovered", zap.Int("tables", len(schema)))
	return schema, nil
}
