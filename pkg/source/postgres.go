// pkg/source/postgres.go
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/model"
)

// PostgresSource reads raw incident records from a PostgreSQL table
type PostgresSource struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
	table  string
}

// NewPostgresSource creates and validates a PostgreSQL record source
func NewPostgresSource(ctx context.Context, cfg *config.PostgresConfig, table string, logger *zap.Logger) (*PostgresSource, error) {
	logger = logger.Named("postgres-source")

	if err := validIdentifier(table); err != nil {
		return nil, err
	}

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("table", table))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db.DB)

	return &PostgresSource{
		db:     db,
		logger: logger,
		cfg:    cfg,
		table:  table,
	}, nil
}

// Load reads the whole source table. Column types reported by the driver
// map onto declared column types; values arrive as raw cells for the
// cleaning stages to parse.
func (s *PostgresSource) Load(ctx context.Context) (*model.Table, error) {
	queryCtx := ctx
	if s.cfg.StatementTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.cfg.StatementTimeout)
		defer cancel()
	}

	query := fmt.Sprintf("SELECT * FROM %s", s.table)
	rows, err := s.db.QueryxContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", s.table, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types for %s: %w", s.table, err)
	}

	columns := make([]model.Column, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, model.Column{
			Name: ct.Name(),
			Type: converter.MapDatabaseType(ct.DatabaseTypeName()),
		})
	}
	table := model.NewTable(model.NewSchema(columns...))

	for rows.Next() {
		raw := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", s.table, err)
		}

		row := make(model.Row, len(columns))
		for name, value := range raw {
			if cell := normalizeCell(value); cell != nil {
				row[name] = cell
			}
		}
		table.AppendRow(row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", s.table, err)
	}

	s.logger.Info("PostgreSQL table loaded",
		zap.String("table", s.table),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))

	return table, nil
}

// Close closes the database connection
func (s *PostgresSource) Close() error {
	s.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(s.logger, s.cfg.Database, s.db.DB)
	return s.db.Close()
}
