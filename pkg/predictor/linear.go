// pkg/predictor/linear.go
package predictor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/citylab/incident-report/pkg/model"
)

// Linear models the count as an intercept plus a slope on the hour plus
// one additive fixed effect per category level, with no interaction
// terms. The first level in the encoding is the reference and carries
// no coefficient of its own.
type Linear struct {
	features Features
	levels   map[string]int
	coeffs   []float64
	fitted   bool
}

// NewLinear creates an unfitted linear strategy for the given features
func NewLinear(features Features) *Linear {
	return &Linear{
		features: features,
		levels:   features.levelIndexes(),
	}
}

// Name returns the strategy name
func (l *Linear) Name() string {
	return StrategyLinear
}

// Fit estimates the coefficients by least squares over the training rows
func (l *Linear) Fit(train *model.Table) error {
	if train == nil || train.NumRows() == 0 {
		return &model.InsufficientDataError{Reason: "training set is empty"}
	}
	if len(l.features.Levels) < 2 {
		return &model.InsufficientDataError{
			Reason: fmt.Sprintf("%s has %d level(s), need at least 2", l.features.CategoryColumn, len(l.features.Levels)),
		}
	}

	x, y, err := designRows(train, l.features, l.levels)
	if err != nil {
		return fmt.Errorf("failed to build design matrix: %w", err)
	}

	// A level with no training rows would leave its indicator column
	// identically zero and the system singular
	counts := make([]int, len(l.features.Levels))
	for _, xi := range x {
		counts[int(xi[1])]++
	}
	for i, c := range counts {
		if c == 0 {
			return &model.InsufficientDataError{
				Reason: fmt.Sprintf("%s level %q has no training rows", l.features.CategoryColumn, l.features.Levels[i]),
			}
		}
	}

	// Columns: intercept, hour, then one indicator per non-reference level
	p := 2 + len(l.features.Levels) - 1
	if len(x) < p {
		return &model.InsufficientDataError{
			Reason: fmt.Sprintf("%d training rows cannot identify %d coefficients", len(x), p),
		}
	}

	design := mat.NewDense(len(x), p, nil)
	for i, xi := range x {
		design.Set(i, 0, 1)
		design.Set(i, 1, xi[0])
		if idx := int(xi[1]); idx > 0 {
			design.Set(i, 1+idx, 1)
		}
	}
	response := mat.NewVecDense(len(y), y)

	var qr mat.QR
	qr.Factorize(design)
	solution := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(solution, false, response); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("failed to solve least squares system: %w", err)
		}
		// Near-singular systems still produce a usable solution
	}

	l.coeffs = make([]float64, p)
	for i := range l.coeffs {
		l.coeffs[i] = solution.AtVec(i)
	}
	l.fitted = true
	return nil
}

// Predict returns one fitted count per row, in row order
func (l *Linear) Predict(rows *model.Table) ([]float64, error) {
	if !l.fitted {
		return nil, errors.New("linear model has not been fitted")
	}
	x, err := featureRows(rows, l.features, l.levels)
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction rows: %w", err)
	}
	predictions := make([]float64, len(x))
	for i, xi := range x {
		yhat := l.coeffs[0] + l.coeffs[1]*xi[0]
		if idx := int(xi[1]); idx > 0 {
			yhat += l.coeffs[1+idx]
		}
		predictions[i] = yhat
	}
	return predictions, nil
}

// Coefficients returns the fitted coefficients keyed by term name. The
// reference level is the first level in the encoding and is represented
// by the intercept. Returns nil before Fit.
func (l *Linear) Coefficients() map[string]float64 {
	if !l.fitted {
		return nil
	}
	terms := make(map[string]float64, len(l.features.Levels)+1)
	terms["(intercept)"] = l.coeffs[0]
	terms[l.features.HourColumn] = l.coeffs[1]
	for i, level := range l.features.Levels {
		if i == 0 {
			continue
		}
		terms[fmt.Sprintf("%s=%s", l.features.CategoryColumn, level)] = l.coeffs[1+i]
	}
	return terms
}
