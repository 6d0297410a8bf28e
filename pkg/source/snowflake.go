// pkg/source/snowflake.go
package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/model"
)

// SnowflakeSource reads raw incident records from a Snowflake table
type SnowflakeSource struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
	table  string
}

// NewSnowflakeSource creates and validates a Snowflake record source
func NewSnowflakeSource(ctx context.Context, cfg *config.SnowflakeConfig, table string, logger *zap.Logger) (*SnowflakeSource, error) {
	logger = logger.Named("snowflake-source")

	if err := validIdentifier(table); err != nil {
		return nil, err
	}

	// Build DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Set query timeout if configured
	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	// Verify connection
	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	source := &SnowflakeSource{
		db:     db,
		logger: logger,
		cfg:    cfg,
		table:  table,
	}

	if err := source.validate(); err != nil {
		db.Close()
		return nil, err
	}

	LogConnectionStats(logger, cfg.Database, db)
	return source, nil
}

// validate verifies the Snowflake session matches the configured database
func (s *SnowflakeSource) validate() error {
	var role, database, warehouse string
	err := s.db.QueryRow("SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	s.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	if database != s.cfg.Database {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, s.cfg.Database)
	}

	return nil
}

// Load reads the whole source table into a raw table
func (s *SnowflakeSource) Load(ctx context.Context) (*model.Table, error) {
	queryCtx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	query := fmt.Sprintf("SELECT * FROM %s", s.table)
	rows, err := s.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", s.table, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types for %s: %w", s.table, err)
	}

	columns := make([]model.Column, 0, len(columnTypes))
	names := make([]string, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, model.Column{
			Name: ct.Name(),
			Type: converter.MapDatabaseType(ct.DatabaseTypeName()),
		})
		names = append(names, ct.Name())
	}
	table := model.NewTable(model.NewSchema(columns...))

	for rows.Next() {
		values := make([]interface{}, len(names))
		scanArgs := make([]interface{}, len(names))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", s.table, err)
		}

		row := make(model.Row, len(names))
		for i, name := range names {
			if cell := normalizeCell(values[i]); cell != nil {
				row[name] = cell
			}
		}
		table.AppendRow(row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", s.table, err)
	}

	s.logger.Info("Snowflake table loaded",
		zap.String("table", s.table),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))

	return table, nil
}

// Close closes the database connection
func (s *SnowflakeSource) Close() error {
	s.logger.Info("Closing Snowflake connection")
	LogConnectionStats(s.logger, s.cfg.Database, s.db)
	return s.db.Close()
}
