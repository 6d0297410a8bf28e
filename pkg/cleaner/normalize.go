// pkg/cleaner/normalize.go
package cleaner

import (
	"errors"
	"time"

	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/model"
)

// Normalize parses the date and time columns into canonical values and
// derives hour (0-23) and weekday (Sunday-first categorical) for every
// row. Rows whose date or time fails to parse keep null derived fields
// and a recovered ParseError is reported; DropUnparsed excludes them.
func (c *DataCleaner) Normalize(table *model.Table) (*model.Table, []model.CleaningOperation, []*model.ParseError, error) {
	for _, required := range []string{c.opts.DateColumn, c.opts.TimeColumn} {
		if !table.Schema.HasColumn(required) {
			return nil, nil, nil, &model.SchemaError{Column: required}
		}
	}

	dateName := table.Schema.ColumnByName(c.opts.DateColumn).Name
	timeName := table.Schema.ColumnByName(c.opts.TimeColumn).Name

	// The output schema keeps every input column, retypes the date and
	// time columns to their canonical types, and appends the derived
	// columns
	columns := make([]model.Column, 0, table.NumColumns()+2)
	for _, col := range table.Schema.Columns {
		switch col.Name {
		case dateName:
			columns = append(columns, model.Column{Name: col.Name, Type: model.TypeDate})
		case timeName:
			columns = append(columns, model.Column{Name: col.Name, Type: model.TypeTime})
		default:
			columns = append(columns, col)
		}
	}
	columns = append(columns,
		model.Column{Name: HourColumn, Type: model.TypeInt},
		model.Column{Name: WeekdayColumn, Type: model.TypeString},
	)

	normalized := model.NewTable(model.NewSchema(columns...))

	var operations []model.CleaningOperation
	var failures []*model.ParseError

	for i, row := range table.Rows {
		out := row.Clone()

		date, dateErr := c.parseDateCell(row[dateName])
		seconds, timeErr := c.parseTimeCell(row[timeName])

		if dateErr != nil || timeErr != nil {
			// Derived fields stay null for this row
			delete(out, dateName)
			delete(out, timeName)

			// A null cell is a plain missing value; only an actual
			// string that failed to parse counts as a parse failure
			if dateErr != nil && !errors.Is(dateErr, errMissingValue) {
				failures = append(failures, parseFailure(dateName, row[dateName], dateErr))
			}
			if timeErr != nil && !errors.Is(timeErr, errMissingValue) {
				failures = append(failures, parseFailure(timeName, row[timeName], timeErr))
			}
			operations = append(operations, newNullDerivedOp(i, dateErr, timeErr))

			normalized.AppendRow(out)
			continue
		}

		hour, err := converter.HourOfDay(seconds)
		if err != nil {
			return nil, nil, nil, err
		}

		out[dateName] = date
		out[timeName] = seconds
		out[HourColumn] = hour
		out[WeekdayColumn] = date.Weekday().String()

		normalized.AppendRow(out)
	}

	return normalized, operations, failures, nil
}

// DropUnparsed excludes rows whose derived fields are null so that
// aggregation only ever sees fully normalized records
func (c *DataCleaner) DropUnparsed(table *model.Table) (*model.Table, []model.CleaningOperation) {
	cleaned := model.NewTable(table.Schema.Clone())

	var operations []model.CleaningOperation
	for i, row := range table.Rows {
		if row[HourColumn] == nil || row[WeekdayColumn] == nil {
			operations = append(operations, newDropRowOp(HourColumn, i, nil, reasonUnparseable))
			continue
		}
		cleaned.AppendRow(row.Clone())
	}

	return cleaned, operations
}

// parseDateCell parses a raw date cell, passing time.Time through
func (c *DataCleaner) parseDateCell(value interface{}) (time.Time, error) {
	parsed, err := c.parser.ParseCell(value, model.TypeDate)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Time{}, errMissingValue
	}
	return parsed.(time.Time), nil
}

// parseTimeCell parses a raw time-of-day cell into seconds since midnight
func (c *DataCleaner) parseTimeCell(value interface{}) (int, error) {
	parsed, err := c.parser.ParseCell(value, model.TypeTime)
	if err != nil {
		return 0, err
	}
	if parsed == nil {
		return 0, errMissingValue
	}
	return parsed.(int), nil
}
