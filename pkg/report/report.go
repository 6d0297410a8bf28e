// pkg/report/report.go
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/evaluate"
	"github.com/citylab/incident-report/pkg/model"
)

// NamedTable pairs a human-readable title with the table it describes.
// The title doubles as the workbook sheet name.
type NamedTable struct {
	Name  string
	Table *model.Table
}

// StrategyResult carries one strategy's aligned pairs and headline
// metrics into the report
type StrategyResult struct {
	Strategy string
	Pairs    []evaluate.Pair
	Summary  evaluate.Summary
}

// WorkbookData is everything the workbook writer needs for one run
type WorkbookData struct {
	RunID        string
	GeneratedAt  time.Time
	Aggregates   []NamedTable
	Evaluations  []StrategyResult
	Coefficients map[string]float64
}

// Reporter renders charts and workbooks into a target directory
type Reporter struct {
	dir    string
	logger *zap.Logger
}

// NewReporter creates a reporter writing into dir, creating it if needed
func NewReporter(dir string, logger *zap.Logger) (*Reporter, error) {
	if dir == "" {
		return nil, errors.New("report directory cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	return &Reporter{
		dir:    dir,
		logger: logger.Named("reporter"),
	}, nil
}

// Dir returns the directory the reporter writes into
func (r *Reporter) Dir() string {
	return r.dir
}

func (r *Reporter) path(name string) string {
	return filepath.Join(r.dir, name)
}
