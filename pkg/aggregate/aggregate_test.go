// pkg/aggregate/aggregate_test.go
package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citylab/incident-report/pkg/model"
)

func incidentTable() *model.Table {
	table := model.NewTable(model.NewSchema(
		model.Column{Name: "BORO", Type: model.TypeString},
		model.Column{Name: "hour", Type: model.TypeInt},
		model.Column{Name: "weekday", Type: model.TypeString},
	))
	table.AppendRow(model.Row{"BORO": "BRONX", "hour": 23, "weekday": "Wednesday"})
	table.AppendRow(model.Row{"BORO": "BRONX", "hour": 2, "weekday": "Wednesday"})
	table.AppendRow(model.Row{"BORO": "BROOKLYN", "hour": 23, "weekday": "Thursday"})
	return table
}

func countTotal(t *testing.T, table *model.Table) int64 {
	t.Helper()
	var total int64
	for i := 0; i < table.NumRows(); i++ {
		n, ok := table.IntAt(i, CountColumn)
		require.True(t, ok, "row %d has no count", i)
		total += n
	}
	return total
}

func TestCountByBoroughAndHour(t *testing.T) {
	counts, err := CountBy(incidentTable(), "BORO", "hour")
	require.NoError(t, err)

	require.Equal(t, 3, counts.NumRows())
	assert.True(t, counts.Schema.HasColumn(CountColumn))

	type key struct {
		boro string
		hour int64
	}
	got := make(map[key]int64)
	for i := 0; i < counts.NumRows(); i++ {
		boro, _ := counts.StringAt(i, "BORO")
		hour, _ := counts.IntAt(i, "hour")
		n, _ := counts.IntAt(i, CountColumn)
		got[key{boro, hour}] = n
	}
	assert.Equal(t, map[key]int64{
		{"BRONX", 23}:    1,
		{"BRONX", 2}:     1,
		{"BROOKLYN", 23}: 1,
	}, got)
}

func TestCountConservation(t *testing.T) {
	table := incidentTable()

	for _, keys := range [][]string{{"hour"}, {"weekday"}, {"BORO"}, {"BORO", "hour"}} {
		counts, err := CountBy(table, keys...)
		require.NoError(t, err)
		assert.Equal(t, int64(table.NumRows()), countTotal(t, counts),
			"counts grouped by %v must sum to the row count", keys)
	}
}

func TestCountByNullKeyRowsContributeNothing(t *testing.T) {
	table := incidentTable()
	table.AppendRow(model.Row{"hour": 5, "weekday": "Friday"})

	counts, err := CountBy(table, "BORO")
	require.NoError(t, err)

	assert.Equal(t, int64(3), countTotal(t, counts))
	assert.Equal(t, 2, counts.NumRows())
}

func TestCountByEmptyTable(t *testing.T) {
	table := model.NewTable(model.NewSchema(model.Column{Name: "BORO", Type: model.TypeString}))

	counts, err := CountBy(table, "BORO")
	require.NoError(t, err)
	assert.Zero(t, counts.NumRows())
}

func TestCountByUnknownColumn(t *testing.T) {
	_, err := CountBy(incidentTable(), "NEIGHBORHOOD")

	var schemaErr *model.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "NEIGHBORHOOD", schemaErr.Column)
}

func TestSortByCountDesc(t *testing.T) {
	byBorough, err := CountBy(incidentTable(), "BORO")
	require.NoError(t, err)

	sorted := SortByCountDesc(byBorough)

	first, _ := sorted.StringAt(0, "BORO")
	firstCount, _ := sorted.IntAt(0, CountColumn)
	assert.Equal(t, "BRONX", first)
	assert.Equal(t, int64(2), firstCount)
}

func TestSortByColumn(t *testing.T) {
	byHour, err := CountBy(incidentTable(), "hour")
	require.NoError(t, err)

	sorted := SortByColumn(byHour, "hour")

	hours := make([]int64, 0, sorted.NumRows())
	for i := 0; i < sorted.NumRows(); i++ {
		h, _ := sorted.IntAt(i, "hour")
		hours = append(hours, h)
	}
	assert.Equal(t, []int64{2, 23}, hours)
}

func TestSortByColumns(t *testing.T) {
	counts, err := CountBy(incidentTable(), "BORO", "hour")
	require.NoError(t, err)

	sorted := SortByColumns(counts, "BORO", "hour")

	type key struct {
		boro string
		hour int64
	}
	got := make([]key, 0, sorted.NumRows())
	for i := 0; i < sorted.NumRows(); i++ {
		boro, _ := sorted.StringAt(i, "BORO")
		hour, _ := sorted.IntAt(i, "hour")
		got = append(got, key{boro, hour})
	}
	assert.Equal(t, []key{
		{"BRONX", 2},
		{"BRONX", 23},
		{"BROOKLYN", 23},
	}, got)
}

func TestSortByWeekday(t *testing.T) {
	table := model.NewTable(model.NewSchema(
		model.Column{Name: "weekday", Type: model.TypeString},
		model.Column{Name: CountColumn, Type: model.TypeInt},
	))
	table.AppendRow(model.Row{"weekday": "Saturday", CountColumn: 4})
	table.AppendRow(model.Row{"weekday": "Sunday", CountColumn: 2})
	table.AppendRow(model.Row{"weekday": "Wednesday", CountColumn: 7})

	sorted := SortByWeekday(table, "weekday")

	got := make([]string, 0, sorted.NumRows())
	for i := 0; i < sorted.NumRows(); i++ {
		w, _ := sorted.StringAt(i, "weekday")
		got = append(got, w)
	}
	assert.Equal(t, []string{"Sunday", "Wednesday", "Saturday"}, got)
}

func TestSortsDoNotMutateInput(t *testing.T) {
	byHour, err := CountBy(incidentTable(), "hour")
	require.NoError(t, err)

	firstBefore, _ := byHour.IntAt(0, "hour")
	_ = SortByColumn(byHour, "hour")
	firstAfter, _ := byHour.IntAt(0, "hour")

	assert.Equal(t, firstBefore, firstAfter)
}
