// Package mysql implements the datasource adapter for MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

// Adapter provides MySQL connectivity, execution and schema discovery.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens a connection pool and verifies connectivity.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	a := &Adapter{config: cfg, db: db, logger: logger}
	if err := a.TestConnection(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func buildDSN(cfg *Config) string {
	dsn := driver.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.TLSConfig = cfg.TLS
	return dsn.FormatDSN()
}

// Dialect implements datasource.Adapter.
func (a *Adapter) Dialect() string {
	return "MySQL"
}

// TestConnection verifies the database is reachable and is the configured one.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if currentDB.String != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB.String)
	}
	return nil
}

// Execute runs a single statement and returns all rows. MySQL reads
// backslashes in string literals as escapes.
func (a *Adapter) Execute(ctx context.Context, statement string) ([]models.Row, error) {
	return datasource.QueryRows(ctx, a.db, statement, sqlcheck.WithBackslashEscapes())
}

// Discover implements datasource.SchemaIntrospector.
func (a *Adapter) Discover(ctx context.Context) (models.Schema, error) {
	return datasource.DiscoverSchema(ctx, a, models.CategoricalThreshold, a.logger)
}

// ListTables returns base tables of the connected database.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
	ORDER BY table_name`
	return datasource.ScanStrings(ctx, a.db, query)
}

// ListColumns returns columns in ordinal order with upper-cased type names.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnSchema, error) {
	const query = `
	SELECT column_name, data_type, column_key = 'PRI'
	FROM information_schema.columns
	WHERE table_schema = DATABASE() AND table_name = ?
	ORDER BY ordinal_position`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var col models.ColumnSchema
		if err := rows.Scan(&col.Name, &col.Type, &col.IsPK); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Type = strings.ToUpper(col.Type)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// DistinctValues probes a column's distinct non-null values.
func (a *Adapter) DistinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	col := quoteIdentifier(column)
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT ?",
		col, quoteIdentifier(table), col)
	return datasource.ScanStrings(ctx, a.db, query, limit)
}

// QuoteIdentifier wraps a name in backticks.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var _ datasource.Adapter = (*Adapter)(nil)
