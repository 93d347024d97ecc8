package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-askdata/pkg/sql"
)

// QueryRows runs a single statement on a database/sql handle and collects
// every row. The statement is normalized first so trailing semicolons and
// comments are accepted and stacked statements are rejected before reaching
// the driver.
func QueryRows(ctx context.Context, db *sql.DB, statement string, opts ...sqlcheck.NormalizeOption) ([]models.Row, error) {
	normalized, err := sqlcheck.Normalize(statement, opts...)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, normalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return CollectRows(rows)
}

// CollectRows drains rows into ordered records. Duplicate column names get a
// numeric suffix so no value is lost.
func CollectRows(rows *sql.Rows) ([]models.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	columns = UniqueColumnNames(columns)

	result := make([]models.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = NormalizeValue(v)
		}
		result = append(result, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ScanStrings runs a query and returns its first column as strings, skipping NULLs.
func ScanStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if v == nil {
			continue
		}
		out = append(out, ValueString(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeValue converts driver values into JSON-friendly scalars.
// Byte slices become strings.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// ValueString renders a scalar for prompts and categorical value lists.
func ValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// UniqueColumnNames suffixes repeated names: id, id → id, id_2.
func UniqueColumnNames(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, c := range columns {
		seen[c]++
		name := c
		for n := seen[c]; n > 1; n++ {
			candidate := fmt.Sprintf("%s_%d", c, n)
			if _, taken := seen[candidate]; !taken {
				name = candidate
				seen[candidate] = 1
				seen[c] = n
				break
			}
		}
		out[i] = name
	}
	return out
}
