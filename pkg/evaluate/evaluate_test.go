// pkg/evaluate/evaluate_test.go
package evaluate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citylab/incident-report/pkg/model"
)

func countTable(counts ...int) *model.Table {
	table := model.NewTable(model.NewSchema(
		model.Column{Name: "n", Type: model.TypeInt},
	))
	for _, n := range counts {
		table.AppendRow(model.Row{"n": n})
	}
	return table
}

func TestPairsAlignsByPosition(t *testing.T) {
	eval := countTable(1, 2, 3)

	pairs, err := Pairs(eval, []float64{1.5, 2.0, 2.5}, "n")
	require.NoError(t, err)

	expected := []Pair{
		{Actual: 1, Predicted: 1.5},
		{Actual: 2, Predicted: 2.0},
		{Actual: 3, Predicted: 2.5},
	}
	assert.Equal(t, expected, pairs)
}

func TestPairsLengthMismatch(t *testing.T) {
	eval := countTable(1, 2, 3)

	_, err := Pairs(eval, []float64{1.5, 2.0}, "n")
	var alignment *model.AlignmentError
	require.ErrorAs(t, err, &alignment)
	assert.Equal(t, 3, alignment.Want)
	assert.Equal(t, 2, alignment.Got)
}

func TestPairsNilTable(t *testing.T) {
	_, err := Pairs(nil, nil, "n")
	assert.Error(t, err)
}

func TestPairsMissingTarget(t *testing.T) {
	eval := countTable(1)
	_, err := Pairs(eval, []float64{1.0}, "count")
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	pairs := []Pair{
		{Actual: 2, Predicted: 3},
		{Actual: 4, Predicted: 3},
		{Actual: 6, Predicted: 7},
	}

	// Every error is exactly 1, the actual mean is 4, SS_tot = 8, SS_res = 3
	assert.Equal(t, 1.0, RMSE(pairs))
	assert.Equal(t, 1.0, MAE(pairs))
	assert.Equal(t, 0.625, RSquared(pairs))

	summary := Summarize(pairs)
	assert.Equal(t, 3, summary.Pairs)
	assert.Equal(t, 1.0, summary.RMSE)
	assert.Equal(t, 1.0, summary.MAE)
	assert.Equal(t, 0.625, summary.RSquared)
}

func TestMetricsPerfectFit(t *testing.T) {
	pairs := []Pair{
		{Actual: 1, Predicted: 1},
		{Actual: 5, Predicted: 5},
	}
	assert.Equal(t, 0.0, RMSE(pairs))
	assert.Equal(t, 0.0, MAE(pairs))
	assert.Equal(t, 1.0, RSquared(pairs))
}

func TestMetricsEmptyPairs(t *testing.T) {
	assert.True(t, math.IsNaN(RMSE(nil)))
	assert.True(t, math.IsNaN(MAE(nil)))
	assert.True(t, math.IsNaN(RSquared(nil)))

	summary := Summarize(nil)
	assert.Zero(t, summary.Pairs)
	assert.True(t, math.IsNaN(summary.RMSE))
}

func TestRSquaredZeroVariance(t *testing.T) {
	pairs := []Pair{
		{Actual: 5, Predicted: 4},
		{Actual: 5, Predicted: 6},
	}
	assert.True(t, math.IsNaN(RSquared(pairs)))
	assert.Equal(t, 1.0, RMSE(pairs))
}
