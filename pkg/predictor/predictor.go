// pkg/predictor/predictor.go
package predictor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/citylab/incident-report/pkg/model"
)

// Strategy names accepted by ForName
const (
	StrategyLinear = "linear"
	StrategyForest = "forest"
)

// Strategy is the contract shared by every count model: fit once on a
// training table of aggregated counts, then predict counts for further
// rows of the same shape. Predictions are returned exactly as the model
// produced them, never clamped or rounded.
type Strategy interface {
	Name() string
	Fit(train *model.Table) error
	Predict(rows *model.Table) ([]float64, error)
}

// Features names the predictor and target columns shared by all
// strategies and fixes the category encoding for the lifetime of a model.
type Features struct {
	HourColumn     string
	CategoryColumn string
	TargetColumn   string

	// Levels holds every distinct category value observed across the
	// training and evaluation tables, sorted for a stable encoding.
	Levels []string
}

// NewFeatures derives the shared feature description from the training
// and evaluation tables. The category level universe is the union over
// both tables so that a level seen only at evaluation time still has a
// place in the encoding.
func NewFeatures(train, eval *model.Table, hourColumn, categoryColumn, targetColumn string) (Features, error) {
	f := Features{
		HourColumn:     hourColumn,
		CategoryColumn: categoryColumn,
		TargetColumn:   targetColumn,
	}

	seen := make(map[string]struct{})
	for _, table := range []*model.Table{train, eval} {
		if table == nil {
			continue
		}
		for _, name := range []string{hourColumn, categoryColumn, targetColumn} {
			if !table.Schema.HasColumn(name) {
				return Features{}, &model.SchemaError{Column: name}
			}
		}
		for i := 0; i < table.NumRows(); i++ {
			level, ok := table.StringAt(i, categoryColumn)
			if !ok {
				return Features{}, fmt.Errorf("row %d has no %s value", i, categoryColumn)
			}
			if _, dup := seen[level]; !dup {
				seen[level] = struct{}{}
				f.Levels = append(f.Levels, level)
			}
		}
	}
	sort.Strings(f.Levels)

	if len(f.Levels) < 2 {
		return Features{}, &model.InsufficientDataError{
			Reason: fmt.Sprintf("found %d distinct %s levels across training and evaluation, need at least 2", len(f.Levels), categoryColumn),
		}
	}
	return f, nil
}

// levelIndexes maps each category level to its position in the encoding
func (f Features) levelIndexes() map[string]int {
	indexes := make(map[string]int, len(f.Levels))
	for i, level := range f.Levels {
		indexes[level] = i
	}
	return indexes
}

// ForName builds the named strategy. The forest options are ignored by
// the linear strategy.
func ForName(name string, features Features, opts ForestOptions) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyLinear:
		return NewLinear(features), nil
	case StrategyForest:
		return NewForest(features, opts), nil
	default:
		return nil, fmt.Errorf("unsupported model strategy: %s", name)
	}
}

// featureRows extracts one numeric feature vector per table row: the
// hour and the category level index, in encoding order.
func featureRows(t *model.Table, f Features, levels map[string]int) ([][]float64, error) {
	if t == nil {
		return nil, errors.New("table is nil")
	}
	x := make([][]float64, t.NumRows())
	for i := range x {
		hour, ok := t.FloatAt(i, f.HourColumn)
		if !ok {
			return nil, fmt.Errorf("row %d has no numeric %s value", i, f.HourColumn)
		}
		level, ok := t.StringAt(i, f.CategoryColumn)
		if !ok {
			return nil, fmt.Errorf("row %d has no %s value", i, f.CategoryColumn)
		}
		idx, known := levels[level]
		if !known {
			return nil, fmt.Errorf("row %d has unknown %s level %q", i, f.CategoryColumn, level)
		}
		x[i] = []float64{hour, float64(idx)}
	}
	return x, nil
}

// designRows extracts the feature rows together with the target vector
func designRows(t *model.Table, f Features, levels map[string]int) ([][]float64, []float64, error) {
	x, err := featureRows(t, f, levels)
	if err != nil {
		return nil, nil, err
	}
	y := make([]float64, t.NumRows())
	for i := range y {
		v, ok := t.FloatAt(i, f.TargetColumn)
		if !ok {
			return nil, nil, fmt.Errorf("row %d has no numeric %s value", i, f.TargetColumn)
		}
		y[i] = v
	}
	return x, y, nil
}
