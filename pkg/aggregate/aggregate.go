// pkg/aggregate/aggregate.go
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/citylab/incident-report/pkg/model"
)

// CountColumn is the name of the count column on aggregate tables
const CountColumn = "n"

// keySeparator joins key parts into a single partition identifier
const keySeparator = "\x1f"

// CountBy partitions rows by the distinct combination of values in the
// grouping key columns and emits one row per partition carrying the key
// values and the partition's row count. Rows with a null value in any
// key column contribute to no partition, so the counts always sum to
// the number of rows non-null in all keys. Output ordering is first-seen
// and callers needing a particular order must sort explicitly.
func CountBy(table *model.Table, keys ...string) (*model.Table, error) {
	if table == nil {
		return nil, errors.New("input table cannot be nil")
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one grouping key is required")
	}

	resolved := make([]string, len(keys))
	columns := make([]model.Column, 0, len(keys)+1)
	for i, key := range keys {
		col := table.Schema.ColumnByName(key)
		if col == nil {
			return nil, &model.SchemaError{Column: key}
		}
		resolved[i] = col.Name
		columns = append(columns, *col)
	}
	columns = append(columns, model.Column{Name: CountColumn, Type: model.TypeInt})

	out := model.NewTable(model.NewSchema(columns...))

	counts := make(map[string]int)
	keyValues := make(map[string]model.Row)
	order := make([]string, 0)

	for _, row := range table.Rows {
		partition, ok := partitionKey(row, resolved)
		if !ok {
			continue
		}

		if _, seen := counts[partition]; !seen {
			values := make(model.Row, len(resolved)+1)
			for _, name := range resolved {
				values[name] = row[name]
			}
			keyValues[partition] = values
			order = append(order, partition)
		}
		counts[partition]++
	}

	for _, partition := range order {
		row := keyValues[partition]
		row[CountColumn] = counts[partition]
		out.AppendRow(row)
	}

	return out, nil
}

// partitionKey builds the partition identifier for a row, reporting
// ok=false when any key cell is null or empty
func partitionKey(row model.Row, keys []string) (string, bool) {
	parts := make([]string, len(keys))
	for i, name := range keys {
		value, exists := row[name]
		if !exists || model.IsMissing(value) {
			return "", false
		}
		parts[i] = fmt.Sprintf("%v", value)
	}
	return strings.Join(parts, keySeparator), true
}

// SortByCountDesc returns a copy of an aggregate table ordered by count,
// largest first
func SortByCountDesc(table *model.Table) *model.Table {
	out := model.NewTable(table.Schema.Clone())
	out.Rows = append(out.Rows, table.Rows...)

	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, _ := out.Rows[i][CountColumn].(int)
		b, _ := out.Rows[j][CountColumn].(int)
		return a > b
	})
	return out
}

// SortByColumn returns a copy of a table ordered ascending by one
// column's natural order (numeric for int/float cells, lexical for
// strings)
func SortByColumn(table *model.Table, column string) *model.Table {
	out := model.NewTable(table.Schema.Clone())
	out.Rows = append(out.Rows, table.Rows...)

	name := column
	if col := table.Schema.ColumnByName(column); col != nil {
		name = col.Name
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return lessCell(out.Rows[i][name], out.Rows[j][name])
	})
	return out
}

// lessCell compares two cells of the same column
func lessCell(a, b interface{}) bool {
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// SortByColumns returns a copy of a table ordered ascending by several
// columns, earlier columns first
func SortByColumns(table *model.Table, columns ...string) *model.Table {
	out := model.NewTable(table.Schema.Clone())
	out.Rows = append(out.Rows, table.Rows...)

	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column
		if col := table.Schema.ColumnByName(column); col != nil {
			names[i] = col.Name
		}
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		for _, name := range names {
			a, b := out.Rows[i][name], out.Rows[j][name]
			if lessCell(a, b) {
				return true
			}
			if lessCell(b, a) {
				return false
			}
		}
		return false
	})
	return out
}

// SortByWeekday returns a copy of a table ordered by the Sunday-first
// weekday position of one column. Unknown labels sort last.
func SortByWeekday(table *model.Table, column string) *model.Table {
	out := model.NewTable(table.Schema.Clone())
	out.Rows = append(out.Rows, table.Rows...)

	name := column
	if col := table.Schema.ColumnByName(column); col != nil {
		name = col.Name
	}

	position := func(row model.Row) int {
		label, _ := row[name].(string)
		idx := model.WeekdayIndex(label)
		if idx < 0 {
			return len(model.WeekdayLevels())
		}
		return idx
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return position(out.Rows[i]) < position(out.Rows[j])
	})
	return out
}
