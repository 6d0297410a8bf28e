// pkg/report/workbook.go
package report

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/model"
)

// WriteWorkbook writes one xlsx with a sheet per aggregate table plus an
// evaluation sheet and a run summary. Returns the path of the written file.
func (r *Reporter) WriteWorkbook(data WorkbookData, filename string) (string, error) {
	if len(data.Aggregates) == 0 {
		return "", errors.New("workbook needs at least one aggregate table")
	}

	f := excelize.NewFile()
	defer f.Close()

	first := sheetName(data.Aggregates[0].Name)
	f.SetSheetName("Sheet1", first)
	if err := writeTableSheet(f, first, data.Aggregates[0].Table); err != nil {
		return "", err
	}
	for _, aggregate := range data.Aggregates[1:] {
		name := sheetName(aggregate.Name)
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		if err := writeTableSheet(f, name, aggregate.Table); err != nil {
			return "", err
		}
	}

	if len(data.Evaluations) > 0 {
		if err := writeEvaluationSheet(f, data.Evaluations); err != nil {
			return "", err
		}
		if err := writeSummarySheet(f, data); err != nil {
			return "", err
		}
	}

	out := r.path(filename)
	if err := f.SaveAs(out); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	r.logger.Info("Workbook written",
		zap.String("path", out),
		zap.Int("aggregateSheets", len(data.Aggregates)),
		zap.Int("strategies", len(data.Evaluations)))
	return out, nil
}

// sheetName clamps a title to the 31 characters xlsx allows
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

func writeTableSheet(f *excelize.File, sheet string, table *model.Table) error {
	if table == nil {
		return fmt.Errorf("no table for sheet %q", sheet)
	}

	for i, column := range table.Schema.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, column.Name)
		if colName, err := excelize.ColumnNumberToName(i + 1); err == nil {
			f.SetColWidth(sheet, colName, colName, 16)
		}
	}

	for rowIdx, row := range table.Rows {
		for colIdx, column := range table.Schema.Columns {
			v, ok := row[column.Name]
			if !ok || v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return nil
}

func writeEvaluationSheet(f *excelize.File, evaluations []StrategyResult) error {
	const sheet = "Evaluation"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
	}

	headers := []string{"strategy", "row", "actual", "predicted", "residual"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		if colName, err := excelize.ColumnNumberToName(i + 1); err == nil {
			f.SetColWidth(sheet, colName, colName, 14)
		}
	}

	rowIdx := 2
	for _, result := range evaluations {
		for i, pair := range result.Pairs {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", rowIdx), result.Strategy)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", rowIdx), i+1)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", rowIdx), pair.Actual)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", rowIdx), pair.Predicted)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", rowIdx), pair.Predicted-pair.Actual)
			rowIdx++
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, data WorkbookData) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
	}

	f.SetCellValue(sheet, "A1", "run")
	f.SetCellValue(sheet, "B1", data.RunID)
	f.SetCellValue(sheet, "A2", "generated")
	f.SetCellValue(sheet, "B2", data.GeneratedAt.Format(time.RFC3339))

	headers := []string{"strategy", "pairs", "rmse", "mae", "rSquared"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(sheet, cell, header)
	}
	for i, result := range evaluationsSorted(data.Evaluations) {
		rowIdx := 5 + i
		f.SetCellValue(sheet, fmt.Sprintf("A%d", rowIdx), result.Strategy)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", rowIdx), result.Summary.Pairs)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", rowIdx), metricCell(result.Summary.RMSE))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", rowIdx), metricCell(result.Summary.MAE))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", rowIdx), metricCell(result.Summary.RSquared))
	}

	if len(data.Coefficients) > 0 {
		base := 6 + len(data.Evaluations)
		f.SetCellValue(sheet, fmt.Sprintf("A%d", base), "term")
		f.SetCellValue(sheet, fmt.Sprintf("B%d", base), "coefficient")

		terms := make([]string, 0, len(data.Coefficients))
		for term := range data.Coefficients {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for i, term := range terms {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", base+1+i), term)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", base+1+i), data.Coefficients[term])
		}
	}

	f.SetColWidth(sheet, "A", "B", 24)
	return nil
}

// evaluationsSorted returns the strategy results in name order
func evaluationsSorted(evaluations []StrategyResult) []StrategyResult {
	sorted := make([]StrategyResult, len(evaluations))
	copy(sorted, evaluations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strategy < sorted[j].Strategy })
	return sorted
}

// metricCell keeps NaN metrics readable in the sheet
func metricCell(v float64) interface{} {
	if math.IsNaN(v) {
		return "NaN"
	}
	return v
}
