// pkg/source/factory.go
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/config"
)

// SourceFactory creates record sources from configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create builds the record source selected by the configuration
func (f *SourceFactory) Create(ctx context.Context) (RecordSource, error) {
	switch f.cfg.SourceKind {
	case config.SourceCSV:
		f.logger.Info("Creating CSV source", zap.String("path", f.cfg.CSVPath))
		return NewCSVSource(f.cfg.CSVPath, f.logger), nil

	case config.SourcePostgres:
		f.logger.Info("Creating PostgreSQL source", zap.String("table", f.cfg.PostgresTable))
		src, err := NewPostgresSource(ctx, f.cfg.Postgres, f.cfg.PostgresTable, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL source: %w", err)
		}
		return src, nil

	case config.SourceSnowflake:
		f.logger.Info("Creating Snowflake source", zap.String("table", f.cfg.SnowflakeTable))
		src, err := NewSnowflakeSource(ctx, f.cfg.Snowflake, f.cfg.SnowflakeTable, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Snowflake source: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", f.cfg.SourceKind)
	}
}
