// Package mssql implements the datasource adapter for Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// Adapter provides SQL Server connectivity, execution and schema discovery.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens a connection pool and verifies the target database.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}

	a := &Adapter{config: cfg, db: db, logger: logger}
	if err := a.TestConnection(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Dialect implements datasource.Adapter.
func (a *Adapter) Dialect() string {
	return "SQL Server (T-SQL)"
}

// TestConnection verifies the database is reachable and is the configured one.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Execute runs a single statement and returns all rows.
func (a *Adapter) Execute(ctx context.Context, statement string) ([]models.Row, error) {
	return datasource.QueryRows(ctx, a.db, statement)
}

// Discover implements datasource.SchemaIntrospector.
func (a *Adapter) Discover(ctx context.Context) (models.Schema, error) {
	return datasource.DiscoverSchema(ctx, a, models.CategoricalThreshold, a.logger)
}

// ListTables returns user tables of the configured schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
	SELECT t.name
	FROM sys.tables t
	WHERE SCHEMA_NAME(t.schema_id) = @schema AND t.is_ms_shipped = 0
	ORDER BY t.name`
	return datasource.ScanStrings(ctx, a.db, query, sql.Named("schema", a.config.Schema))
}

// ListColumns returns columns in column_id order with upper-cased type names.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnSchema, error) {
	const query = `
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", a.config.Schema),
		sql.Named("table", table),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var col models.ColumnSchema
		var isPrimary int
		if err := rows.Scan(&col.Name, &col.Type, &isPrimary); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Type = strings.ToUpper(col.Type)
		col.IsPK = isPrimary == 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// DistinctValues probes a column's distinct non-null values with TOP.
func (a *Adapter) DistinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	col := quoteName(column)
	query := fmt.Sprintf(
		`SELECT DISTINCT TOP (@limit) %s FROM %s WITH (NOLOCK) WHERE %s IS NOT NULL`,
		col, buildFullyQualifiedName(a.config.Schema, table), col)
	return datasource.ScanStrings(ctx, a.db, query, sql.Named("limit", limit))
}

// QuoteIdentifier wraps a name in square brackets.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

var _ datasource.Adapter = (*Adapter)(nil)
