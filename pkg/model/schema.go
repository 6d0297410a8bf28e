// pkg/model/schema.go
package model

import "strings"

// ColumnType identifies the declared type of a table column
type ColumnType int

const (
	TypeString ColumnType = iota // raw text values
	TypeDate                     // calendar date (time.Time, midnight)
	TypeTime                     // time of day as seconds since midnight
	TypeInt                      // integer values
	TypeFloat                    // floating point values
)

// String returns a human-readable name for the column type
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Column declares a named, typed field of a table
type Column struct {
	Name string     // Column name as it appears in the source header
	Type ColumnType // Declared value type
}

// Schema is the ordered set of columns a table carries
type Schema struct {
	Columns []Column
}

// NewSchema builds a schema from column definitions
func NewSchema(columns ...Column) Schema {
	return Schema{Columns: columns}
}

// ColumnIndex returns the position of a column by name (case-insensitive)
// Returns -1 if the column is not part of the schema
func (s Schema) ColumnIndex(name string) int {
	normalized := normalizeColumnName(name)
	for i, col := range s.Columns {
		if normalizeColumnName(col.Name) == normalized {
			return i
		}
	}
	return -1
}

// HasColumn reports whether a column is part of the schema (case-insensitive)
func (s Schema) HasColumn(name string) bool {
	return s.ColumnIndex(name) >= 0
}

// ColumnByName returns a column definition by name (case-insensitive)
// Returns nil if the column is not part of the schema
func (s Schema) ColumnByName(name string) *Column {
	idx := s.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	return &s.Columns[idx]
}

// Names returns the column names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Clone returns a deep copy of the schema so callers can modify column
// sets without touching the original
func (s Schema) Clone() Schema {
	columns := make([]Column, len(s.Columns))
	copy(columns, s.Columns)
	return Schema{Columns: columns}
}

// Helper for case-insensitive column matching
func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
