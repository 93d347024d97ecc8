// Package sqlite implements the datasource adapter for SQLite files using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// Adapter provides SQLite connectivity, execution and schema discovery.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens the database file. A missing file is an error so a typo
// in the path does not silently create an empty database.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Path != MemoryPath {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("open sqlite database %s: %w", cfg.Path, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if cfg.Path == MemoryPath {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	a := &Adapter{config: cfg, db: db, logger: logger}
	if err := a.TestConnection(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// DB exposes the underlying handle for seeding test fixtures.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Dialect implements datasource.Adapter.
func (a *Adapter) Dialect() string {
	return "SQLite"
}

// TestConnection verifies the database can be queried.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
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

// ListTables returns user tables, excluding SQLite's internal ones.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	return datasource.ScanStrings(ctx, a.db, query)
}

// ListColumns reads PRAGMA table_info, which reports columns in declaration order.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnSchema, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA table_info("+a.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, models.ColumnSchema{Name: name, Type: colType, IsPK: pk > 0})
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
		`SELECT %s FROM (SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT ?) sub`,
		col, col, a.QuoteIdentifier(table), col)
	return datasource.ScanStrings(ctx, a.db, query, limit)
}

// QuoteIdentifier wraps a name in double quotes, doubling embedded quotes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close releases the database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

var _ datasource.Adapter = (*Adapter)(nil)
