// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Source kinds accepted by SOURCE_KIND
const (
	SourceCSV       = "csv"
	SourcePostgres  = "postgres"
	SourceSnowflake = "snowflake"
)

// Config represents the application configuration
type Config struct {
	// Record source
	SourceKind     string
	CSVPath        string
	Postgres       *PostgresConfig
	PostgresTable  string
	Snowflake      *SnowflakeConfig
	SnowflakeTable string

	// Raw column names
	DateColumn    string
	TimeColumn    string
	BoroughColumn string

	// Cleaning
	MissingThreshold float64
	MaxParseFailures int // negative means unlimited

	// Split and modeling
	SplitFraction    float64
	Seed             int64
	Strategies       []string
	ForestTrees      int
	ForestFeatures   int
	ForestMaxDepth   int
	ForestMinSamples int

	// Report output
	ReportDir string

	// Optional run persistence
	StoreResults bool

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		SourceKind:     getEnv("SOURCE_KIND", SourceCSV),
		CSVPath:        getEnv("CSV_PATH", ""),
		PostgresTable:  getEnv("POSTGRES_SOURCE_TABLE", "shooting_incidents"),
		SnowflakeTable: getEnv("SNOWFLAKE_SOURCE_TABLE", "SHOOTING_INCIDENTS"),

		DateColumn:    getEnv("DATE_COLUMN", "OCCUR_DATE"),
		TimeColumn:    getEnv("TIME_COLUMN", "OCCUR_TIME"),
		BoroughColumn: getEnv("BOROUGH_COLUMN", "BORO"),

		MissingThreshold: getEnvAsFloat("MISSING_THRESHOLD", 0.5),
		MaxParseFailures: getEnvAsInt("MAX_PARSE_FAILURES", -1),

		SplitFraction:    getEnvAsFloat("SPLIT_FRACTION", 0.8),
		Seed:             int64(getEnvAsInt("RANDOM_SEED", 42)),
		Strategies:       getEnvAsStringSlice("MODEL_STRATEGIES", []string{"linear", "forest"}),
		ForestTrees:      getEnvAsInt("FOREST_TREES", 500),
		ForestFeatures:   getEnvAsInt("FOREST_FEATURES", 0), // 0 means predictors/3, rounded
		ForestMaxDepth:   getEnvAsInt("FOREST_MAX_DEPTH", 10),
		ForestMinSamples: getEnvAsInt("FOREST_MIN_SAMPLES", 2),

		ReportDir: getEnv("REPORT_DIR", "report"),

		StoreResults: getEnvAsBool("STORE_RESULTS", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Database configurations are only required when a database is
	// actually used as source or sink
	if cfg.SourceKind == SourcePostgres || cfg.StoreResults {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	if cfg.SourceKind == SourceSnowflake {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourceCSV:
		if c.CSVPath == "" {
			return errors.New("CSV_PATH environment variable is required for the csv source")
		}
	case SourcePostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required for the postgres source")
		}
	case SourceSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required for the snowflake source")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.SourceKind)
	}

	if c.MissingThreshold < 0 || c.MissingThreshold > 1 {
		return errors.New("missing threshold must be within [0, 1]")
	}

	if c.SplitFraction <= 0 || c.SplitFraction >= 1 {
		return errors.New("split fraction must be within (0, 1)")
	}

	if len(c.Strategies) == 0 {
		return errors.New("at least one model strategy is required")
	}
	for _, s := range c.Strategies {
		if s != "linear" && s != "forest" {
			return fmt.Errorf("unknown model strategy %q", s)
		}
	}

	if c.ForestTrees <= 0 {
		return errors.New("forest tree count must be positive")
	}

	if c.StoreResults && c.Postgres == nil {
		return errors.New("postgreSQL configuration is required when STORE_RESULTS is enabled")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
