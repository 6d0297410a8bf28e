// pkg/sink/postgres.go
package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/model"
	"github.com/citylab/incident-report/pkg/source"
)

// RunRecord is one pipeline run as persisted: the headline row counts
// plus the per-strategy metrics, the aligned predictions and the
// cleaning audit trail.
type RunRecord struct {
	RunID      uuid.UUID
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time

	RowsLoaded          int
	ColumnsDropped      int
	RowsDroppedBorough  int
	RowsDroppedUnparsed int
	RowsClean           int
	TrainRows           int
	EvalRows            int

	Metrics     []MetricRecord
	Predictions []PredictionRecord
	Operations  []model.CleaningOperation
}

// MetricRecord is one strategy's headline metrics
type MetricRecord struct {
	Strategy string
	Pairs    int
	RMSE     float64
	MAE      float64
	RSquared float64
}

// PredictionRecord is one aligned (actual, predicted) pair
type PredictionRecord struct {
	Strategy  string
	RowIndex  int
	Actual    float64
	Predicted float64
}

// PostgresSink stores run records in PostgreSQL
type PostgresSink struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresSink connects to PostgreSQL and verifies the connection
func NewPostgresSink(cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresSink, error) {
	if cfg == nil {
		return nil, errors.New("postgres configuration cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	source.ApplyConnectionSettings(db.DB, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime)

	if err := source.PingWithTimeout(context.Background(), db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log := logger.Named("postgres-sink")
	log.Info("Connected to PostgreSQL result store",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))

	return &PostgresSink{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

// Close releases the database connection
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// EnsureTables creates the result tables and their indexes when absent
func (s *PostgresSink) EnsureTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS incident_runs (
			id uuid PRIMARY KEY,
			source text NOT NULL,
			started_at timestamptz NOT NULL,
			finished_at timestamptz NOT NULL,
			rows_loaded integer NOT NULL,
			columns_dropped integer NOT NULL,
			rows_dropped_borough integer NOT NULL,
			rows_dropped_unparsed integer NOT NULL,
			rows_clean integer NOT NULL,
			train_rows integer NOT NULL,
			eval_rows integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS incident_run_metrics (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES incident_runs(id) ON DELETE CASCADE,
			strategy text NOT NULL,
			pairs integer NOT NULL,
			rmse double precision,
			mae double precision,
			r_squared double precision,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS incident_predictions (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES incident_runs(id) ON DELETE CASCADE,
			strategy text NOT NULL,
			row_index integer NOT NULL,
			actual double precision NOT NULL,
			predicted double precision NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS incident_cleaning_ops (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES incident_runs(id) ON DELETE CASCADE,
			stage text NOT NULL,
			column_name text NOT NULL,
			row_index integer NOT NULL,
			operation text NOT NULL,
			reason text NOT NULL,
			applied_at timestamptz NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS incident_run_metrics_run_idx ON incident_run_metrics (run_id)`,
		`CREATE INDEX IF NOT EXISTS incident_predictions_run_idx ON incident_predictions (run_id)`,
		`CREATE INDEX IF NOT EXISTS incident_cleaning_ops_run_idx ON incident_cleaning_ops (run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure result tables: %w", err)
		}
	}
	return nil
}

// StoreRun writes one run record in a single transaction
func (s *PostgresSink) StoreRun(ctx context.Context, record RunRecord) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO incident_runs (
			id, source, started_at, finished_at, rows_loaded,
			columns_dropped, rows_dropped_borough, rows_dropped_unparsed,
			rows_clean, train_rows, eval_rows
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,
			$9,$10,$11
		)`,
		record.RunID,
		record.Source,
		record.StartedAt,
		record.FinishedAt,
		record.RowsLoaded,
		record.ColumnsDropped,
		record.RowsDroppedBorough,
		record.RowsDroppedUnparsed,
		record.RowsClean,
		record.TrainRows,
		record.EvalRows,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run row: %w", err)
	}

	const insertMetricSQL = `
		INSERT INTO incident_run_metrics (
			id, run_id, strategy, pairs, rmse, mae, r_squared
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, metric := range record.Metrics {
		_, err = tx.ExecContext(ctx, insertMetricSQL,
			uuid.New(),
			record.RunID,
			metric.Strategy,
			metric.Pairs,
			nullFloat(metric.RMSE),
			nullFloat(metric.MAE),
			nullFloat(metric.RSquared),
		)
		if err != nil {
			return fmt.Errorf("failed to insert metrics for %s: %w", metric.Strategy, err)
		}
	}

	const insertPredictionSQL = `
		INSERT INTO incident_predictions (
			id, run_id, strategy, row_index, actual, predicted
		) VALUES ($1,$2,$3,$4,$5,$6)`
	for _, prediction := range record.Predictions {
		_, err = tx.ExecContext(ctx, insertPredictionSQL,
			uuid.New(),
			record.RunID,
			prediction.Strategy,
			prediction.RowIndex,
			prediction.Actual,
			prediction.Predicted,
		)
		if err != nil {
			return fmt.Errorf("failed to insert predictions for %s: %w", prediction.Strategy, err)
		}
	}

	const insertOperationSQL = `
		INSERT INTO incident_cleaning_ops (
			id, run_id, stage, column_name, row_index, operation, reason, applied_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, op := range record.Operations {
		_, err = tx.ExecContext(ctx, insertOperationSQL,
			uuid.New(),
			record.RunID,
			op.Stage,
			op.Column,
			op.RowIndex,
			op.Operation,
			op.Reason,
			op.AppliedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cleaning operations: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run record: %w", err)
	}

	s.logger.Info("Run record stored",
		zap.String("runId", record.RunID.String()),
		zap.Int("metrics", len(record.Metrics)),
		zap.Int("predictions", len(record.Predictions)),
		zap.Int("cleaningOps", len(record.Operations)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// nullFloat maps NaN onto SQL NULL
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
