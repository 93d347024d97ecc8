package models

import (
	"maps"
	"slices"
	"strings"
)

// CategoricalThreshold is the largest distinct-value count for which a text
// column's values are enumerated in the schema.
const CategoricalThreshold = 20

// ColumnSchema describes a single column.
type ColumnSchema struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	IsPK bool   `json:"is_pk" yaml:"is_pk"`
}

// TableSchema holds a table's columns in declaration order plus the value
// sets of its low-cardinality text columns.
type TableSchema struct {
	Columns     []ColumnSchema      `json:"columns" yaml:"columns"`
	Categorical map[string][]string `json:"categorical,omitempty" yaml:"categorical,omitempty"`
}

// Schema maps table name to table description.
type Schema map[string]TableSchema

// TableNames returns the table names sorted for stable output.
func (s Schema) TableNames() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone deep-copies the schema.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for name, t := range s {
		out[name] = TableSchema{
			Columns:     slices.Clone(t.Columns),
			Categorical: cloneCategorical(t.Categorical),
		}
	}
	return out
}

// IsTextType reports whether a declared column type is a text family type.
func IsTextType(declared string) bool {
	upper := strings.ToUpper(declared)
	for _, marker := range []string{"CHAR", "TEXT", "VARCHAR", "STRING"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// IsCategoricalCandidate reports whether a column should be probed for its
// distinct values: text typed and not part of the primary key.
func (c ColumnSchema) IsCategoricalCandidate() bool {
	return !c.IsPK && IsTextType(c.Type)
}
