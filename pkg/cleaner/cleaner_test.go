// pkg/cleaner/cleaner_test.go
package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/model"
)

func newTestCleaner(t *testing.T) *DataCleaner {
	t.Helper()
	c, err := NewDataCleaner(converter.NewValueParser(zap.NewNop()), zap.NewNop(), DefaultOptions())
	require.NoError(t, err)
	return c
}

func rawSchema(extra ...model.Column) model.Schema {
	columns := []model.Column{
		{Name: "OCCUR_DATE", Type: model.TypeString},
		{Name: "OCCUR_TIME", Type: model.TypeString},
		{Name: "BORO", Type: model.TypeString},
	}
	return model.NewSchema(append(columns, extra...)...)
}

func TestNewDataCleanerValidation(t *testing.T) {
	parser := converter.NewValueParser(zap.NewNop())

	_, err := NewDataCleaner(nil, zap.NewNop(), DefaultOptions())
	assert.Error(t, err)

	_, err = NewDataCleaner(parser, nil, DefaultOptions())
	assert.Error(t, err)

	_, err = NewDataCleaner(parser, zap.NewNop(), Options{DateColumn: "d", TimeColumn: "t"})
	assert.Error(t, err)
}

func TestCleanScenario(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "23:30:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "02:15:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/02/2020", "OCCUR_TIME": "23:45:00", "BORO": "BROOKLYN"})

	result, err := c.Clean(table)
	require.NoError(t, err)

	require.Equal(t, 3, result.Table.NumRows())
	assert.Empty(t, result.ColumnsDropped)
	assert.Zero(t, result.RowsDroppedBorough)
	assert.Zero(t, result.RowsDroppedUnparsed)
	assert.Empty(t, result.ParseFailures)

	wantHours := []int64{23, 2, 23}
	wantWeekdays := []string{"Wednesday", "Wednesday", "Thursday"}
	for i := range wantHours {
		hour, ok := result.Table.IntAt(i, HourColumn)
		require.True(t, ok, "row %d has no hour", i)
		assert.Equal(t, wantHours[i], hour)

		weekday, ok := result.Table.StringAt(i, WeekdayColumn)
		require.True(t, ok, "row %d has no weekday", i)
		assert.Equal(t, wantWeekdays[i], weekday)
	}
}

func TestFilterSchemaThreshold(t *testing.T) {
	c := newTestCleaner(t)

	schema := rawSchema(
		model.Column{Name: "PERP_RACE", Type: model.TypeString},
		model.Column{Name: "VIC_AGE", Type: model.TypeString},
	)
	table := model.NewTable(schema)
	// PERP_RACE is missing in 2 of 4 rows, exactly at the 0.5 threshold;
	// VIC_AGE is missing in 1 of 4
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "01:00:00", "BORO": "BRONX", "PERP_RACE": "UNKNOWN", "VIC_AGE": "25"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "02:00:00", "BORO": "BRONX", "VIC_AGE": "30"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "03:00:00", "BORO": "QUEENS", "PERP_RACE": "", "VIC_AGE": "35"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "04:00:00", "BORO": "QUEENS", "PERP_RACE": "WHITE"})

	filtered, ops, dropped, droppedRows, err := c.FilterSchema(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"PERP_RACE"}, dropped)
	assert.False(t, filtered.Schema.HasColumn("PERP_RACE"))
	assert.True(t, filtered.Schema.HasColumn("VIC_AGE"))
	assert.Zero(t, droppedRows)
	assert.Equal(t, 4, filtered.NumRows())

	var recorded bool
	for _, op := range ops {
		if op.Operation == opDropColumn && op.Column == "PERP_RACE" {
			recorded = true
		}
	}
	assert.True(t, recorded, "expected a drop_column operation for PERP_RACE")
}

func TestFilterSchemaKeepsRequiredColumns(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	// The date column is missing in every row but must survive anyway
	table.AppendRow(model.Row{"OCCUR_TIME": "01:00:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_TIME": "02:00:00", "BORO": "QUEENS"})

	filtered, _, dropped, _, err := c.FilterSchema(table)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.True(t, filtered.Schema.HasColumn("OCCUR_DATE"))
}

func TestFilterSchemaMissingRequiredColumn(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(model.NewSchema(
		model.Column{Name: "OCCUR_DATE", Type: model.TypeString},
		model.Column{Name: "OCCUR_TIME", Type: model.TypeString},
	))
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "01:00:00"})

	_, _, _, _, err := c.FilterSchema(table)

	var schemaErr *model.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "BORO", schemaErr.Column)
}

func TestFilterSchemaDropsBoroughlessRows(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "01:00:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "02:00:00"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "03:00:00", "BORO": "null"})

	filtered, _, _, droppedRows, err := c.FilterSchema(table)
	require.NoError(t, err)

	assert.Equal(t, 2, droppedRows)
	require.Equal(t, 1, filtered.NumRows())
	boro, _ := filtered.StringAt(0, "BORO")
	assert.Equal(t, "BRONX", boro)
}

func TestCleanExcludesUnparseableRows(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "23:30:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "25:99:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/02/2020", "OCCUR_TIME": "23:45:00", "BORO": "BROOKLYN"})

	result, err := c.Clean(table)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Table.NumRows())
	assert.Equal(t, 1, result.RowsDroppedUnparsed)

	require.Len(t, result.ParseFailures, 1)
	failure := result.ParseFailures[0]
	assert.Equal(t, "OCCUR_TIME", failure.Field)
	assert.Equal(t, "25:99:00", failure.Value)
	assert.Error(t, failure.Err)
}

func TestCleanMissingDateExcludedWithoutParseFailure(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	table.AppendRow(model.Row{"OCCUR_TIME": "23:30:00", "BORO": "BRONX"})
	table.AppendRow(model.Row{"OCCUR_DATE": "01/02/2020", "OCCUR_TIME": "23:45:00", "BORO": "BROOKLYN"})

	result, err := c.Clean(table)
	require.NoError(t, err)

	// A null cell is an ordinary missing value, not a parse failure,
	// but the row is still excluded
	assert.Equal(t, 1, result.Table.NumRows())
	assert.Equal(t, 1, result.RowsDroppedUnparsed)
	assert.Empty(t, result.ParseFailures)
}

func TestCleanEmptyTable(t *testing.T) {
	c := newTestCleaner(t)

	result, err := c.Clean(model.NewTable(rawSchema()))
	require.NoError(t, err)

	assert.Zero(t, result.Table.NumRows())
	assert.True(t, result.Table.Schema.HasColumn(HourColumn))
	assert.True(t, result.Table.Schema.HasColumn(WeekdayColumn))
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	c := newTestCleaner(t)

	table := model.NewTable(rawSchema())
	table.AppendRow(model.Row{"OCCUR_DATE": "01/01/2020", "OCCUR_TIME": "23:30:00", "BORO": "BRONX"})

	_, err := c.Clean(table)
	require.NoError(t, err)

	raw, ok := table.StringAt(0, "OCCUR_DATE")
	require.True(t, ok, "input table was retyped in place")
	assert.Equal(t, "01/01/2020", raw)
	assert.False(t, table.Schema.HasColumn(HourColumn))
}
