package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// QueryExecutor runs one read-only statement and returns every row.
// Failures are returned as errors; the caller records the message as the
// execution error that drives the repair loop.
type QueryExecutor interface {
	Execute(ctx context.Context, statement string) ([]models.Row, error)
}

// SchemaIntrospector reports the tables, columns and categorical column
// values of the datasource.
type SchemaIntrospector interface {
	Discover(ctx context.Context) (models.Schema, error)
}

// Catalog is the per-dialect surface DiscoverSchema walks.
type Catalog interface {
	// ListTables returns user table names.
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns a table's columns in declaration order.
	ListColumns(ctx context.Context, table string) ([]models.ColumnSchema, error)

	// DistinctValues returns up to limit distinct non-null values of a column.
	DistinctValues(ctx context.Context, table, column string, limit int) ([]string, error)
}

// Adapter is a connected datasource.
// Each implementation owns its connection and must be closed when done.
type Adapter interface {
	QueryExecutor
	SchemaIntrospector
	Catalog

	// Dialect names the SQL dialect for prompts, e.g. "SQLite".
	Dialect() string

	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// QuoteIdentifier safely quotes a table or column name for the dialect.
	QuoteIdentifier(name string) string

	// Close releases the database connection.
	Close() error
}
