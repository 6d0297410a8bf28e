// cmd/incident-report/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/pipeline"
	"github.com/citylab/incident-report/pkg/report"
	"github.com/citylab/incident-report/pkg/sink"
	"github.com/citylab/incident-report/pkg/source"
)

func main() {
	envFile := flag.String("env", "", "Path to a .env file to load before reading configuration")
	csvPath := flag.String("csv", "", "CSV input path, overrides CSV_PATH")
	reportDir := flag.String("out", "", "Report output directory, overrides REPORT_DIR")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			exitWithError(fmt.Errorf("failed to load env file %s: %w", *envFile, err))
		}
	} else {
		// A .env next to the binary is optional
		_ = godotenv.Load()
	}

	if *csvPath != "" {
		os.Setenv("CSV_PATH", *csvPath)
	}
	if *reportDir != "" {
		os.Setenv("REPORT_DIR", *reportDir)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		exitWithError(fmt.Errorf("failed to load configuration: %w", err))
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		exitWithError(fmt.Errorf("failed to initialize logger: %w", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.NewSourceFactory(cfg, logger).Create(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close record source", zap.Error(err))
		}
	}()

	pipe, err := pipeline.NewPipeline(cfg, src, logger)
	if err != nil {
		return err
	}

	reporter, err := report.NewReporter(cfg.ReportDir, logger)
	if err != nil {
		return err
	}
	pipe.WithReporter(reporter)

	if cfg.StoreResults {
		results, err := sink.NewPostgresSink(cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer results.Close()
		pipe.WithSink(results)
	}

	result, err := pipe.Run(ctx)
	if err != nil {
		return err
	}

	paths, err := pipe.RenderReport(result)
	if err != nil {
		return err
	}
	logger.Info("Report rendered",
		zap.String("runId", result.RunID.String()),
		zap.Strings("files", paths),
	)

	if cfg.StoreResults {
		if err := pipe.PersistRun(ctx, result); err != nil {
			return err
		}
	}

	fmt.Print(pipe.Metrics().Report())
	return nil
}

// buildLogger constructs the process logger from the configured level
// and format
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	switch cfg.LogFormat {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	case "json":
		zapCfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
