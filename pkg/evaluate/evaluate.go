// pkg/evaluate/evaluate.go
package evaluate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/citylab/incident-report/pkg/model"
)

// Pair joins one observed count with the model's prediction for the
// same evaluation row
type Pair struct {
	Actual    float64
	Predicted float64
}

// Pairs aligns the evaluation rows with a prediction vector by
// position. The two lengths must match exactly; a mismatch aborts the
// run rather than pairing values that belong to different rows.
func Pairs(eval *model.Table, predictions []float64, targetColumn string) ([]Pair, error) {
	if eval == nil {
		return nil, errors.New("evaluation table is nil")
	}
	if eval.NumRows() != len(predictions) {
		return nil, &model.AlignmentError{Want: eval.NumRows(), Got: len(predictions)}
	}
	pairs := make([]Pair, len(predictions))
	for i := range pairs {
		actual, ok := eval.FloatAt(i, targetColumn)
		if !ok {
			return nil, fmt.Errorf("row %d has no numeric %s value", i, targetColumn)
		}
		pairs[i] = Pair{Actual: actual, Predicted: predictions[i]}
	}
	return pairs, nil
}

// Summary bundles the headline accuracy metrics for one set of pairs
type Summary struct {
	Pairs    int
	RMSE     float64
	MAE      float64
	RSquared float64
}

// Summarize computes all metrics over the pairs
func Summarize(pairs []Pair) Summary {
	return Summary{
		Pairs:    len(pairs),
		RMSE:     RMSE(pairs),
		MAE:      MAE(pairs),
		RSquared: RSquared(pairs),
	}
}

// RMSE is the root mean squared error, NaN for no pairs
func RMSE(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return math.NaN()
	}
	var total float64
	for _, p := range pairs {
		d := p.Predicted - p.Actual
		total += d * d
	}
	return math.Sqrt(total / float64(len(pairs)))
}

// MAE is the mean absolute error, NaN for no pairs
func MAE(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return math.NaN()
	}
	var total float64
	for _, p := range pairs {
		total += math.Abs(p.Predicted - p.Actual)
	}
	return total / float64(len(pairs))
}

// RSquared is the coefficient of determination, NaN when there are no
// pairs or the actuals have no variance
func RSquared(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return math.NaN()
	}
	actuals := make([]float64, len(pairs))
	for i, p := range pairs {
		actuals[i] = p.Actual
	}
	mean := stat.Mean(actuals, nil)

	var residual, total float64
	for _, p := range pairs {
		residual += (p.Actual - p.Predicted) * (p.Actual - p.Predicted)
		total += (p.Actual - mean) * (p.Actual - mean)
	}
	if total == 0 {
		return math.NaN()
	}
	return 1 - residual/total
}
