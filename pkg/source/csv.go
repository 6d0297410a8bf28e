// pkg/source/csv.go
package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/model"
)

// CSVSource reads raw incident records from a delimited text file. The
// header row defines the column set; every value loads as a raw string
// and blank cells load as null.
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource creates a CSV-file record source
func NewCSVSource(path string, logger *zap.Logger) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: logger.Named("csv-source"),
	}
}

// Load reads the whole file into a string-typed table
func (s *CSVSource) Load(ctx context.Context) (*model.Table, error) {
	s.logger.Info("Loading CSV file", zap.String("path", s.path))

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file %s is empty", s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]model.Column, 0, len(header))
	for _, name := range header {
		columns = append(columns, model.Column{
			Name: strings.TrimSpace(name),
			Type: model.TypeString,
		})
	}
	table := model.NewTable(model.NewSchema(columns...))

	line := 1
	for {
		// Honor cancellation between records
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line+1, err)
		}
		line++

		row := make(model.Row, len(columns))
		for i, col := range table.Schema.Columns {
			value := strings.TrimSpace(record[i])
			if value == "" {
				continue // blank cell stays null
			}
			row[col.Name] = value
		}
		table.AppendRow(row)
	}

	s.logger.Info("CSV file loaded",
		zap.String("path", s.path),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))

	return table, nil
}

// Close is a no-op for file sources; the file handle is scoped to Load
func (s *CSVSource) Close() error {
	return nil
}
