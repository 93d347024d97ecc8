package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Row is one result record. Columns preserves the order the executor
// returned them in; Values is keyed by column name.
type Row struct {
	Columns []string
	Values  map[string]any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	r := Row{
		Columns: slices.Clone(columns),
		Values:  make(map[string]any, len(columns)),
	}
	for i, c := range columns {
		if i < len(values) {
			r.Values[c] = values[i]
		} else {
			r.Values[c] = nil
		}
	}
	return r
}

// Get returns the value for a column and whether the column exists.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Clone copies the column list and the value map. Values themselves are
// scalars and are shared.
func (r Row) Clone() Row {
	return Row{
		Columns: slices.Clone(r.Columns),
		Values:  maps.Clone(r.Values),
	}
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[c])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, recording key order as the column order.
// Numbers decode as float64, matching encoding/json defaults.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	out := Row{Columns: []string{}, Values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected row key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		if _, seen := out.Values[key]; !seen {
			out.Columns = append(out.Columns, key)
		}
		out.Values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}
