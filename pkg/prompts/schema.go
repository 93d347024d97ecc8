package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// FormatSchema renders one line per table, sorted by table name:
//
//	  table(col (TYPE) PK, col2 (TYPE))
func FormatSchema(schema models.Schema) string {
	lines := make([]string, 0, len(schema))
	for _, name := range schema.TableNames() {
		lines = append(lines, formatTableLine(name, schema[name]))
	}
	return strings.Join(lines, "\n")
}

// FormatSchemaWithValues renders FormatSchema plus, under each table, the
// known values of its categorical columns in column order.
func FormatSchemaWithValues(schema models.Schema) string {
	var b strings.Builder
	for i, name := range schema.TableNames() {
		if i > 0 {
			b.WriteString("\n")
		}
		table := schema[name]
		b.WriteString(formatTableLine(name, table))

		if len(table.Categorical) == 0 {
			continue
		}
		b.WriteString("\n    categorical_columns:")
		for _, col := range table.Columns {
			values, ok := table.Categorical[col.Name]
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("\n      %s: %s", col.Name, quoteValues(values)))
		}
	}
	return b.String()
}

func formatTableLine(name string, table models.TableSchema) string {
	defs := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		def := fmt.Sprintf("%s (%s)", col.Name, col.Type)
		if col.IsPK {
			def += " PK"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("  %s(%s)", name, strings.Join(defs, ", "))
}

func quoteValues(values []string) string {
	data, err := json.Marshal(values)
	if err != nil {
		return strings.Join(values, ", ")
	}
	return string(data)
}
