// Package postgres implements the datasource adapter for PostgreSQL using pgx.
package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

// Adapter provides PostgreSQL connectivity, execution and schema discovery.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		url.QueryEscape(sslMode),
	)
}

// NewAdapter creates a pool and verifies it can reach the database.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	a := &Adapter{config: cfg, pool: pool, logger: logger}
	if err := a.TestConnection(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// Dialect implements datasource.Adapter.
func (a *Adapter) Dialect() string {
	return "PostgreSQL"
}

// TestConnection verifies the database is reachable and is the configured one.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	if currentDB != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Execute runs a single statement and returns all rows.
func (a *Adapter) Execute(ctx context.Context, statement string) ([]models.Row, error) {
	normalized, err := sqlcheck.Normalize(statement)
	if err != nil {
		return nil, err
	}

	rows, err := a.pool.Query(ctx, normalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	names := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		names[i] = fd.Name
	}
	columns := datasource.UniqueColumnNames(names)

	result := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result = append(result, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Discover implements datasource.SchemaIntrospector.
func (a *Adapter) Discover(ctx context.Context) (models.Schema, error) {
	return datasource.DiscoverSchema(ctx, a, models.CategoricalThreshold, a.logger)
}

// ListTables returns base tables of the configured schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema = $1
		ORDER BY table_name`

	rows, err := a.pool.Query(ctx, query, a.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tables: %w", err)
	}
	return tables, nil
}

// ListColumns returns columns in ordinal order. Primary keys come from
// pg_index so keys created as unique indexes by ORMs are still detected.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnSchema, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			COALESCE(pk.is_pk, false) AS is_primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := a.pool.Query(ctx, query, a.config.Schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var c models.ColumnSchema
		if err := rows.Scan(&c.Name, &c.Type, &c.IsPK); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// DistinctValues probes a column's distinct non-null values.
func (a *Adapter) DistinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	col := a.QuoteIdentifier(column)
	query := fmt.Sprintf(
		`SELECT %s FROM (SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT $1) sub`,
		col, col, qualifiedTableName(a.config.Schema, table), col)

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		v, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}
		values = append(values, datasource.ValueString(normalizeValue(v[0])))
	}
	return values, rows.Err()
}

// QuoteIdentifier safely quotes a PostgreSQL identifier.
func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// qualifiedTableName returns "schema"."table", or just "table" without a schema.
func qualifiedTableName(schemaName, tableName string) string {
	if schemaName == "" {
		return pgx.Identifier{tableName}.Sanitize()
	}
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

// normalizeValue maps pgx decoded values onto JSON-friendly scalars.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []byte:
		return string(val)
	default:
		return v
	}
}

var _ datasource.Adapter = (*Adapter)(nil)
