// pkg/cleaner/filter.go
package cleaner

import (
	"strings"

	"github.com/citylab/incident-report/pkg/model"
)

// FilterSchema drops columns whose missing ratio is at or above the
// configured threshold and then drops rows with a null/empty borough.
// The required date, time and borough columns are never ratio-dropped;
// a required column absent from the input schema entirely is a
// SchemaError.
func (c *DataCleaner) FilterSchema(table *model.Table) (*model.Table, []model.CleaningOperation, []string, int, error) {
	for _, required := range []string{c.opts.BoroughColumn, c.opts.DateColumn, c.opts.TimeColumn} {
		if !table.Schema.HasColumn(required) {
			return nil, nil, nil, 0, &model.SchemaError{Column: required}
		}
	}

	var operations []model.CleaningOperation

	// Column pass: retain exactly the columns whose missing ratio is
	// strictly below the threshold, plus the required columns
	retained := make([]model.Column, 0, table.NumColumns())
	dropped := make([]string, 0)
	for _, col := range table.Schema.Columns {
		ratio := missingRatio(table, col.Name)
		if ratio >= c.opts.MissingThreshold && !c.isRequired(col.Name) {
			dropped = append(dropped, col.Name)
			operations = append(operations, newDropColumnOp(col.Name, ratio))
			continue
		}
		retained = append(retained, col)
	}

	filtered := model.NewTable(model.NewSchema(retained...))
	boroughName := table.Schema.ColumnByName(c.opts.BoroughColumn).Name

	// Row pass: keep rows with a non-null borough
	droppedRows := 0
	for i, row := range table.Rows {
		boroughValue := row[boroughName]
		if model.IsMissing(boroughValue) {
			droppedRows++
			operations = append(operations, newDropRowOp(boroughName, i, boroughValue, reasonMissingBorough))
			continue
		}

		clean := make(model.Row, len(retained))
		for _, col := range retained {
			if v, ok := row[col.Name]; ok && v != nil {
				clean[col.Name] = v
			}
		}
		filtered.AppendRow(clean)
	}

	return filtered, operations, dropped, droppedRows, nil
}

// isRequired reports whether a column must survive filtering because a
// later stage depends on it
func (c *DataCleaner) isRequired(column string) bool {
	return strings.EqualFold(column, c.opts.BoroughColumn) ||
		strings.EqualFold(column, c.opts.DateColumn) ||
		strings.EqualFold(column, c.opts.TimeColumn)
}

// missingRatio computes the fraction of rows where the column's value is
// null or an empty string. A table with no rows has ratio zero.
func missingRatio(table *model.Table, column string) float64 {
	if table.NumRows() == 0 {
		return 0
	}

	missing := 0
	for _, row := range table.Rows {
		if model.IsMissing(row[column]) {
			missing++
		}
	}
	return float64(missing) / float64(table.NumRows())
}
