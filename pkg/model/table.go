// pkg/model/table.go
package model

import (
	"strings"
	"time"
)

// Row holds one record's values keyed by column name. A nil value or a
// missing key means the cell is null.
type Row map[string]interface{}

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	clone := make(Row, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Table is an immutable-by-convention tabular dataset: every pipeline
// stage receives a table and returns a new one, never mutating its input.
type Table struct {
	Schema Schema
	Rows   []Row
}

// NewTable creates an empty table with the given schema
func NewTable(schema Schema) *Table {
	return &Table{
		Schema: schema,
		Rows:   make([]Row, 0),
	}
}

// NumRows returns the number of rows in the table
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of columns in the table's schema
func (t *Table) NumColumns() int {
	return len(t.Schema.Columns)
}

// AppendRow adds a row to the table
func (t *Table) AppendRow(row Row) {
	t.Rows = append(t.Rows, row)
}

// Value returns the cell at (rowIdx, column) and whether it is non-null
func (t *Table) Value(rowIdx int, column string) (interface{}, bool) {
	if rowIdx < 0 || rowIdx >= len(t.Rows) {
		return nil, false
	}
	col := t.Schema.ColumnByName(column)
	if col == nil {
		return nil, false
	}
	v, ok := t.Rows[rowIdx][col.Name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// IsNull reports whether the cell at (rowIdx, column) is null or missing
func (t *Table) IsNull(rowIdx int, column string) bool {
	_, ok := t.Value(rowIdx, column)
	return !ok
}

// StringAt returns the cell as a string, with ok=false for null or
// non-string cells
func (t *Table) StringAt(rowIdx int, column string) (string, bool) {
	v, ok := t.Value(rowIdx, column)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntAt returns the cell as an int64, widening smaller integer types
func (t *Table) IntAt(rowIdx int, column string) (int64, bool) {
	v, ok := t.Value(rowIdx, column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// FloatAt returns the cell as a float64, widening integer cells
func (t *Table) FloatAt(rowIdx int, column string) (float64, bool) {
	v, ok := t.Value(rowIdx, column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// TimeAt returns the cell as a time.Time
func (t *Table) TimeAt(rowIdx int, column string) (time.Time, bool) {
	v, ok := t.Value(rowIdx, column)
	if !ok {
		return time.Time{}, false
	}
	ts, ok := v.(time.Time)
	return ts, ok
}

// IsMissing reports whether a raw value counts as missing: nil, or a
// string that is empty or one of the conventional null tokens
func IsMissing(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	switch strings.TrimSpace(s) {
	case "", "null", "NULL", "NA", "N/A", "(null)":
		return true
	}
	return false
}

// WeekdayLevels returns the fixed Sunday-first ordering used for the
// derived weekday categorical
func WeekdayLevels() []string {
	return []string{
		time.Sunday.String(),
		time.Monday.String(),
		time.Tuesday.String(),
		time.Wednesday.String(),
		time.Thursday.String(),
		time.Friday.String(),
		time.Saturday.String(),
	}
}

// WeekdayIndex returns the Sunday-first position of a weekday label,
// or -1 for an unknown label
func WeekdayIndex(label string) int {
	for i, name := range WeekdayLevels() {
		if name == label {
			return i
		}
	}
	return -1
}
