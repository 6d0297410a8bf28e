// pkg/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so ambient values
// cannot leak into a test. getEnv treats the empty string as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SOURCE_KIND", "CSV_PATH", "POSTGRES_SOURCE_TABLE", "SNOWFLAKE_SOURCE_TABLE",
		"DATE_COLUMN", "TIME_COLUMN", "BOROUGH_COLUMN",
		"MISSING_THRESHOLD", "MAX_PARSE_FAILURES", "SPLIT_FRACTION", "RANDOM_SEED", "MODEL_STRATEGIES",
		"FOREST_TREES", "FOREST_FEATURES", "FOREST_MAX_DEPTH", "FOREST_MIN_SAMPLES",
		"REPORT_DIR", "STORE_RESULTS", "LOG_LEVEL", "LOG_FORMAT",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT",
		"SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "SNOWFLAKE_ACCOUNT", "SNOWFLAKE_WAREHOUSE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CSV_PATH", "incidents.csv")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, cfg.SourceKind)
	assert.Equal(t, "incidents.csv", cfg.CSVPath)
	assert.Equal(t, "OCCUR_DATE", cfg.DateColumn)
	assert.Equal(t, "OCCUR_TIME", cfg.TimeColumn)
	assert.Equal(t, "BORO", cfg.BoroughColumn)
	assert.Equal(t, 0.5, cfg.MissingThreshold)
	assert.Equal(t, -1, cfg.MaxParseFailures)
	assert.Equal(t, 0.8, cfg.SplitFraction)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, []string{"linear", "forest"}, cfg.Strategies)
	assert.Equal(t, 500, cfg.ForestTrees)
	assert.Zero(t, cfg.ForestFeatures)
	assert.Equal(t, 10, cfg.ForestMaxDepth)
	assert.Equal(t, 2, cfg.ForestMinSamples)
	assert.Equal(t, "report", cfg.ReportDir)
	assert.False(t, cfg.StoreResults)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Nil(t, cfg.Postgres)
	assert.Nil(t, cfg.Snowflake)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CSV_PATH", "data/incidents.csv")
	t.Setenv("DATE_COLUMN", "EVENT_DATE")
	t.Setenv("MISSING_THRESHOLD", "0.4")
	t.Setenv("MAX_PARSE_FAILURES", "25")
	t.Setenv("SPLIT_FRACTION", "0.7")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("MODEL_STRATEGIES", "linear, forest")
	t.Setenv("FOREST_TREES", "100")
	t.Setenv("REPORT_DIR", "out")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "data/incidents.csv", cfg.CSVPath)
	assert.Equal(t, "EVENT_DATE", cfg.DateColumn)
	assert.Equal(t, 0.4, cfg.MissingThreshold)
	assert.Equal(t, 25, cfg.MaxParseFailures)
	assert.Equal(t, 0.7, cfg.SplitFraction)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, []string{"linear", "forest"}, cfg.Strategies)
	assert.Equal(t, 100, cfg.ForestTrees)
	assert.Equal(t, "out", cfg.ReportDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadConfigStoreResultsNeedsPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("CSV_PATH", "incidents.csv")
	t.Setenv("STORE_RESULTS", "true")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("POSTGRES_USER", "citylab")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "incidents")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Postgres)
	assert.True(t, cfg.StoreResults)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "citylab", cfg.Postgres.User)
}

func TestLoadConfigSnowflakeSourceNeedsCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_KIND", "snowflake")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("SNOWFLAKE_USER", "loader")
	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("SNOWFLAKE_ACCOUNT", "myaccount")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Snowflake)
	assert.Equal(t, "NYPD", cfg.Snowflake.Database)
	assert.Equal(t, "PUBLIC", cfg.Snowflake.Schema)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SourceKind:       SourceCSV,
			CSVPath:          "incidents.csv",
			MissingThreshold: 0.5,
			SplitFraction:    0.8,
			Strategies:       []string{"linear", "forest"},
			ForestTrees:      500,
		}
	}

	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source kind", func(c *Config) { c.SourceKind = "ftp" }},
		{"csv without path", func(c *Config) { c.CSVPath = "" }},
		{"postgres without config", func(c *Config) { c.SourceKind = SourcePostgres }},
		{"snowflake without config", func(c *Config) { c.SourceKind = SourceSnowflake }},
		{"threshold above one", func(c *Config) { c.MissingThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.MissingThreshold = -0.1 }},
		{"split fraction zero", func(c *Config) { c.SplitFraction = 0 }},
		{"split fraction one", func(c *Config) { c.SplitFraction = 1 }},
		{"no strategies", func(c *Config) { c.Strategies = nil }},
		{"unknown strategy", func(c *Config) { c.Strategies = []string{"xgboost"} }},
		{"zero forest trees", func(c *Config) { c.ForestTrees = 0 }},
		{"store results without postgres", func(c *Config) { c.StoreResults = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "citylab",
		Password: "secret",
		Database: "incidents",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=citylab password=secret dbname=incidents sslmode=require",
		cfg.ConnectionString())
}

func TestSnowflakeConnectionString(t *testing.T) {
	cfg := &SnowflakeConfig{
		User:      "loader",
		Password:  "secret",
		Account:   "myaccount",
		Warehouse: "COMPUTE_WH",
		Database:  "NYPD",
		Schema:    "PUBLIC",
	}

	dsn := cfg.ConnectionString()
	assert.Contains(t, dsn, "loader:secret@myaccount/NYPD/PUBLIC?warehouse=COMPUTE_WH")
	assert.NotContains(t, dsn, "role=")

	cfg.Role = "ANALYST"
	assert.Contains(t, cfg.ConnectionString(), "&role=ANALYST")
}
