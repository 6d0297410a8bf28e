// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"

	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/model"
)

// Derived column names added by the normalizer
const (
	HourColumn    = "hour"
	WeekdayColumn = "weekday"
)

// Options configures the cleaning stages
type Options struct {
	// Raw column names
	DateColumn    string
	TimeColumn    string
	BoroughColumn string

	// Columns with a null/empty ratio at or above this threshold are dropped
	MissingThreshold float64
}

// DefaultOptions returns cleaning options for the source's native layout
func DefaultOptions() Options {
	return Options{
		DateColumn:       "OCCUR_DATE",
		TimeColumn:       "OCCUR_TIME",
		BoroughColumn:    "BORO",
		MissingThreshold: 0.5,
	}
}

// DataCleaner handles schema filtering and field normalization of raw
// incident tables
type DataCleaner struct {
	parser *converter.ValueParser
	logger *zap.Logger
	opts   Options
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(parser *converter.ValueParser, logger *zap.Logger, opts Options) (*DataCleaner, error) {
	if parser == nil {
		return nil, errors.New("value parser cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.DateColumn == "" || opts.TimeColumn == "" || opts.BoroughColumn == "" {
		return nil, errors.New("date, time and borough column names are required")
	}

	return &DataCleaner{
		parser: parser,
		logger: logger,
		opts:   opts,
	}, nil
}

// Result carries a cleaning outcome: the cleaned table plus the audit
// trail of every change and recovered failure
type Result struct {
	Table      *model.Table
	Operations []model.CleaningOperation

	// Recovered per-row parse failures; the affected rows are excluded
	// from the returned table
	ParseFailures []*model.ParseError

	ColumnsDropped      []string
	RowsDroppedBorough  int
	RowsDroppedUnparsed int
}

// Clean runs the full cleaning sequence: schema filter, field
// normalization, then exclusion of rows whose derived fields are null.
// The input table is never modified.
func (c *DataCleaner) Clean(table *model.Table) (*Result, error) {
	if table == nil {
		return nil, errors.New("input table cannot be nil")
	}

	filtered, filterOps, droppedColumns, droppedRows, err := c.FilterSchema(table)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Schema filter applied",
		zap.Int("rowsIn", table.NumRows()),
		zap.Int("rowsOut", filtered.NumRows()),
		zap.Int("columnsIn", table.NumColumns()),
		zap.Int("columnsOut", filtered.NumColumns()),
		zap.Strings("droppedColumns", droppedColumns))

	normalized, normalizeOps, parseFailures, err := c.Normalize(filtered)
	if err != nil {
		return nil, err
	}

	cleaned, dropOps := c.DropUnparsed(normalized)

	if len(parseFailures) > 0 {
		c.logger.Warn("Rows excluded for unparseable date or time",
			zap.Int("count", len(parseFailures)))
	}

	c.logger.Info("Field normalization applied",
		zap.Int("rowsIn", filtered.NumRows()),
		zap.Int("rowsOut", cleaned.NumRows()),
		zap.Int("parseFailures", len(parseFailures)))

	operations := make([]model.CleaningOperation, 0, len(filterOps)+len(normalizeOps)+len(dropOps))
	operations = append(operations, filterOps...)
	operations = append(operations, normalizeOps...)
	operations = append(operations, dropOps...)

	return &Result{
		Table:               cleaned,
		Operations:          operations,
		ParseFailures:       parseFailures,
		ColumnsDropped:      droppedColumns,
		RowsDroppedBorough:  droppedRows,
		RowsDroppedUnparsed: normalized.NumRows() - cleaned.NumRows(),
	}, nil
}
