// pkg/report/report_test.go
package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/evaluate"
	"github.com/citylab/incident-report/pkg/model"
)

func newTestReporter(t *testing.T) *Reporter {
	t.Helper()
	reporter, err := NewReporter(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return reporter
}

func boroughCounts() *model.Table {
	table := model.NewTable(model.NewSchema(
		model.Column{Name: "BORO", Type: model.TypeString},
		model.Column{Name: "n", Type: model.TypeInt},
	))
	table.AppendRow(model.Row{"BORO": "BRONX", "n": 2})
	table.AppendRow(model.Row{"BORO": "BROOKLYN", "n": 1})
	return table
}

func TestNewReporterValidation(t *testing.T) {
	_, err := NewReporter("", zap.NewNop())
	assert.Error(t, err)

	_, err = NewReporter(t.TempDir(), nil)
	assert.Error(t, err)

	dir := filepath.Join(t.TempDir(), "reports", "nested")
	reporter, err := NewReporter(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, dir, reporter.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCountBarChart(t *testing.T) {
	reporter := newTestReporter(t)

	out, err := reporter.CountBarChart(boroughCounts(), "BORO", "n", "Counts by borough", "counts_by_borough.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reporter.Dir(), "counts_by_borough.png"), out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCountBarChartBadColumn(t *testing.T) {
	reporter := newTestReporter(t)

	_, err := reporter.CountBarChart(boroughCounts(), "BORO", "total", "Counts by borough", "chart.png")
	assert.Error(t, err)

	_, err = reporter.CountBarChart(nil, "BORO", "n", "Counts by borough", "chart.png")
	assert.Error(t, err)
}

func boroughHourCounts() *model.Table {
	table := model.NewTable(model.NewSchema(
		model.Column{Name: "hour", Type: model.TypeInt},
		model.Column{Name: "BORO", Type: model.TypeString},
		model.Column{Name: "n", Type: model.TypeInt},
	))
	table.AppendRow(model.Row{"hour": 2, "BORO": "BRONX", "n": 3})
	table.AppendRow(model.Row{"hour": 2, "BORO": "BROOKLYN", "n": 1})
	table.AppendRow(model.Row{"hour": 23, "BORO": "BRONX", "n": 2})
	return table
}

func TestGroupedCountBarChart(t *testing.T) {
	reporter := newTestReporter(t)

	out, err := reporter.GroupedCountBarChart(boroughHourCounts(), "hour", "BORO", "n",
		"Counts by borough and hour", "counts_by_borough_hour.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reporter.Dir(), "counts_by_borough_hour.png"), out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGroupedCountBarChartBadColumn(t *testing.T) {
	reporter := newTestReporter(t)

	_, err := reporter.GroupedCountBarChart(boroughHourCounts(), "hour", "BORO", "total", "title", "chart.png")
	assert.Error(t, err)

	_, err = reporter.GroupedCountBarChart(nil, "hour", "BORO", "n", "title", "chart.png")
	assert.Error(t, err)
}

func TestPredictionScatter(t *testing.T) {
	reporter := newTestReporter(t)

	pairs := []evaluate.Pair{
		{Actual: 1, Predicted: 1.4},
		{Actual: 2, Predicted: 1.9},
		{Actual: 3, Predicted: 3.2},
	}
	out, err := reporter.PredictionScatter("linear", pairs, "predicted_vs_actual_linear.png")
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteWorkbook(t *testing.T) {
	reporter := newTestReporter(t)

	hourCounts := model.NewTable(model.NewSchema(
		model.Column{Name: "hour", Type: model.TypeInt},
		model.Column{Name: "n", Type: model.TypeInt},
	))
	hourCounts.AppendRow(model.Row{"hour": 2, "n": 1})
	hourCounts.AppendRow(model.Row{"hour": 23, "n": 2})

	pairs := []evaluate.Pair{
		{Actual: 2, Predicted: 1.5},
		{Actual: 1, Predicted: 1.25},
	}
	data := WorkbookData{
		RunID:       "run-1234",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Aggregates: []NamedTable{
			{Name: "Counts by borough", Table: boroughCounts()},
			{Name: "Counts by hour", Table: hourCounts},
		},
		Evaluations: []StrategyResult{
			{Strategy: "linear", Pairs: pairs, Summary: evaluate.Summarize(pairs)},
		},
		Coefficients: map[string]float64{"(intercept)": 2, "hour": 3},
	}

	out, err := reporter.WriteWorkbook(data, "incident_report.xlsx")
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Counts by borough", "Counts by hour", "Evaluation", "Summary"}, f.GetSheetList())

	header, err := f.GetCellValue("Counts by borough", "A1")
	require.NoError(t, err)
	assert.Equal(t, "BORO", header)

	borough, err := f.GetCellValue("Counts by borough", "A2")
	require.NoError(t, err)
	assert.Equal(t, "BRONX", borough)

	count, err := f.GetCellValue("Counts by borough", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", count)

	strategy, err := f.GetCellValue("Evaluation", "A2")
	require.NoError(t, err)
	assert.Equal(t, "linear", strategy)

	runID, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "run-1234", runID)
}

func TestWriteWorkbookNeedsAggregates(t *testing.T) {
	reporter := newTestReporter(t)

	_, err := reporter.WriteWorkbook(WorkbookData{}, "empty.xlsx")
	assert.Error(t, err)
}

func TestSheetNameClamped(t *testing.T) {
	long := strings.Repeat("x", 40)
	assert.Len(t, sheetName(long), 31)
	assert.Equal(t, "Counts by hour", sheetName("Counts by hour"))
}
