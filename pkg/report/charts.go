// pkg/report/charts.go
package report

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/citylab/incident-report/pkg/evaluate"
	"github.com/citylab/incident-report/pkg/model"
)

var barColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}

// CountBarChart renders one bar per row of an aggregate table, labelled
// by the label column and sized by the count column. Returns the path
// of the written PNG.
func (r *Reporter) CountBarChart(table *model.Table, labelColumn, countColumn, title, filename string) (string, error) {
	if table == nil {
		return "", fmt.Errorf("no table for chart %q", title)
	}

	values := make(plotter.Values, table.NumRows())
	labels := make([]string, table.NumRows())
	for i := 0; i < table.NumRows(); i++ {
		count, ok := table.FloatAt(i, countColumn)
		if !ok {
			return "", fmt.Errorf("row %d has no numeric %s value", i, countColumn)
		}
		label, ok := table.Value(i, labelColumn)
		if !ok {
			return "", fmt.Errorf("row %d has no %s value", i, labelColumn)
		}
		values[i] = count
		labels[i] = fmt.Sprintf("%v", label)
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = labelColumn
	p.Y.Label.Text = countColumn
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return "", fmt.Errorf("failed to build bar chart %q: %w", title, err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Tick.Label.XAlign = draw.XCenter

	out := r.path(filename)
	if err := p.Save(8*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("failed to save chart %q: %w", title, err)
	}

	r.logger.Info("Chart written",
		zap.String("title", title),
		zap.String("path", out),
		zap.Int("bars", len(values)))
	return out, nil
}

// GroupedCountBarChart renders an aggregate table keyed by two columns
// as one bar group per label value with one bar per category value.
// Label groups follow the input row order; categories are sorted so bar
// colors stay stable across runs. Returns the path of the written PNG.
func (r *Reporter) GroupedCountBarChart(table *model.Table, labelColumn, categoryColumn, countColumn, title, filename string) (string, error) {
	if table == nil {
		return "", fmt.Errorf("no table for chart %q", title)
	}

	var labels []string
	var categories []string
	counts := make(map[string]map[string]float64)

	for i := 0; i < table.NumRows(); i++ {
		labelValue, ok := table.Value(i, labelColumn)
		if !ok {
			return "", fmt.Errorf("row %d has no %s value", i, labelColumn)
		}
		category, ok := table.StringAt(i, categoryColumn)
		if !ok {
			return "", fmt.Errorf("row %d has no %s value", i, categoryColumn)
		}
		count, ok := table.FloatAt(i, countColumn)
		if !ok {
			return "", fmt.Errorf("row %d has no numeric %s value", i, countColumn)
		}

		label := fmt.Sprintf("%v", labelValue)
		if counts[category] == nil {
			counts[category] = make(map[string]float64)
			categories = append(categories, category)
		}
		if !containsLabel(labels, label) {
			labels = append(labels, label)
		}
		counts[category][label] = count
	}
	sort.Strings(categories)

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = labelColumn
	p.Y.Label.Text = countColumn
	p.Y.Min = 0
	p.Legend.Top = true

	if len(categories) > 0 {
		width := vg.Points(16) / vg.Length(len(categories))
		for i, category := range categories {
			values := make(plotter.Values, len(labels))
			for j, label := range labels {
				values[j] = counts[category][label]
			}

			bars, err := plotter.NewBarChart(values, width)
			if err != nil {
				return "", fmt.Errorf("failed to build bar chart %q: %w", title, err)
			}
			bars.Color = plotutil.Color(i)
			bars.LineStyle.Width = vg.Length(0)
			bars.Offset = width*vg.Length(i) - width*vg.Length(len(categories)-1)/2
			p.Add(bars)
			p.Legend.Add(category, bars)
		}
	}

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Tick.Label.XAlign = draw.XCenter

	out := r.path(filename)
	if err := p.Save(12*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("failed to save chart %q: %w", title, err)
	}

	r.logger.Info("Chart written",
		zap.String("title", title),
		zap.String("path", out),
		zap.Int("groups", len(labels)),
		zap.Int("series", len(categories)))
	return out, nil
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// PredictionScatter renders actual counts against predicted counts for
// one strategy, with a dashed identity line for reference. Returns the
// path of the written PNG.
func (r *Reporter) PredictionScatter(strategy string, pairs []evaluate.Pair, filename string) (string, error) {
	points := make(plotter.XYs, len(pairs))
	for i, pair := range pairs {
		points[i].X = pair.Actual
		points[i].Y = pair.Predicted
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Actual vs predicted counts (%s)", strategy)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return "", fmt.Errorf("failed to build scatter for %s: %w", strategy, err)
	}
	scatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(scatter)
	p.Add(plotter.NewGrid())

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(identity)

	out := r.path(filename)
	if err := p.Save(6*vg.Inch, 6*vg.Inch, out); err != nil {
		return "", fmt.Errorf("failed to save scatter for %s: %w", strategy, err)
	}

	r.logger.Info("Scatter written",
		zap.String("strategy", strategy),
		zap.String("path", out),
		zap.Int("points", len(points)))
	return out, nil
}
