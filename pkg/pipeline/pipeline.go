// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/aggregate"
	"github.com/citylab/incident-report/pkg/cleaner"
	"github.com/citylab/incident-report/pkg/config"
	"github.com/citylab/incident-report/pkg/converter"
	"github.com/citylab/incident-report/pkg/evaluate"
	"github.com/citylab/incident-report/pkg/model"
	"github.com/citylab/incident-report/pkg/predictor"
	"github.com/citylab/incident-report/pkg/report"
	"github.com/citylab/incident-report/pkg/sink"
	"github.com/citylab/incident-report/pkg/source"
	"github.com/citylab/incident-report/pkg/split"
)

// Stage names used for metrics and the problem ledger
const (
	stageLoad      = "load"
	stageClean     = "clean"
	stageAggregate = "aggregate"
	stageSplit     = "split"
	stageModel     = "model"
	stageReport    = "report"
	stageStore     = "store"
)

// AggregateView is one grouped count table together with how it should
// be presented
type AggregateView struct {
	Name        string
	LabelColumn string
	Table       *model.Table

	// GroupColumn splits each label's count into one bar per group
	// value; empty for plain single-series charts
	GroupColumn string

	// Chart filename; empty when the view gets no chart of its own
	ChartFile string
}

// StrategyOutcome holds one fitted strategy's evaluation results
type StrategyOutcome struct {
	Name    string
	Pairs   []evaluate.Pair
	Summary evaluate.Summary

	// Coefficients is set for the linear strategy, TreeCount for the
	// forest strategy
	Coefficients map[string]float64
	TreeCount    int
}

// RunResult carries everything a finished run produced
type RunResult struct {
	RunID      uuid.UUID
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time

	RowsLoaded int
	Cleaning   *cleaner.Result

	Aggregates []AggregateView
	Train      *model.Table
	Eval       *model.Table

	Strategies   []StrategyOutcome
	Verification *VerificationReport
}

// Pipeline orchestrates a full run: load, clean, aggregate, verify,
// split, fit and evaluate each configured strategy
type Pipeline struct {
	cfg      *config.Config
	source   source.RecordSource
	cleaner  *cleaner.DataCleaner
	verifier *Verifier
	ledger   *Ledger
	metrics  *RunMetrics
	logger   *zap.Logger

	reporter *report.Reporter
	sink     *sink.PostgresSink
}

// NewPipeline creates a pipeline over the given record source
func NewPipeline(cfg *config.Config, src source.RecordSource, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	if src == nil {
		return nil, errors.New("record source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	parser := converter.NewValueParser(logger)
	dataCleaner, err := cleaner.NewDataCleaner(parser, logger.Named("cleaner"), cleaner.Options{
		DateColumn:       cfg.DateColumn,
		TimeColumn:       cfg.TimeColumn,
		BoroughColumn:    cfg.BoroughColumn,
		MissingThreshold: cfg.MissingThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create data cleaner: %w", err)
	}

	log := logger.Named("pipeline")
	ledger := NewLedger(log)
	ledger.SetLimit(CategoryParse, cfg.MaxParseFailures)

	return &Pipeline{
		cfg:      cfg,
		source:   src,
		cleaner:  dataCleaner,
		verifier: NewVerifier(log),
		ledger:   ledger,
		metrics:  NewRunMetrics(log),
		logger:   log,
	}, nil
}

// WithReporter attaches a report renderer to the pipeline
func (p *Pipeline) WithReporter(r *report.Reporter) *Pipeline {
	p.reporter = r
	return p
}

// WithSink attaches a result store to the pipeline
func (p *Pipeline) WithSink(s *sink.PostgresSink) *Pipeline {
	p.sink = s
	return p
}

// Ledger exposes the run's problem ledger
func (p *Pipeline) Ledger() *Ledger {
	return p.ledger
}

// Metrics exposes the run's stage metrics
func (p *Pipeline) Metrics() *RunMetrics {
	return p.metrics
}

// Run executes the pipeline end to end. Parse failures are recovered by
// excluding their rows; any other failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New()
	startedAt := time.Now()

	p.logger.Info("Pipeline run starting",
		zap.String("runId", runID.String()),
		zap.String("source", p.cfg.SourceKind),
	)

	p.metrics.StartStage(stageLoad, 0)
	raw, err := p.source.Load(ctx)
	if err != nil {
		p.ledger.Record(NewRecord(err, CategorySource).WithStage(stageLoad))
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	p.metrics.EndStage(stageLoad, raw.NumRows())

	p.metrics.StartStage(stageClean, raw.NumRows())
	cleaned, err := p.cleaner.Clean(raw)
	if err != nil {
		p.ledger.Record(NewRecord(err, CategorySchema).WithStage(stageClean))
		return nil, fmt.Errorf("failed to clean records: %w", err)
	}
	for _, failure := range cleaned.ParseFailures {
		p.ledger.Record(NewRecord(failure, CategoryParse).
			WithStage(stageClean).
			WithColumn(failure.Field, failure.Value))
	}
	p.metrics.EndStage(stageClean, cleaned.Table.NumRows())

	if category, breached := p.ledger.Breached(); breached {
		return nil, fmt.Errorf("too many %s problems: %d recorded", category, p.ledger.Count(category))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.metrics.StartStage(stageAggregate, cleaned.Table.NumRows())
	views, modelTable, err := p.buildAggregates(cleaned.Table)
	if err != nil {
		p.ledger.Record(NewRecord(err, CategorySchema).WithStage(stageAggregate))
		return nil, fmt.Errorf("failed to aggregate counts: %w", err)
	}
	p.metrics.EndStage(stageAggregate, modelTable.NumRows())

	verification := &VerificationReport{}
	for _, view := range views {
		verification.Checks = append(verification.Checks,
			p.verifier.VerifyCountSum(view.Name, view.Table, aggregate.CountColumn, cleaned.Table.NumRows()))
	}

	p.metrics.StartStage(stageSplit, modelTable.NumRows())
	train, eval, err := split.Split(modelTable, p.cfg.SplitFraction, p.cfg.Seed)
	if err != nil {
		p.ledger.Record(NewRecord(err, CategoryModel).WithStage(stageSplit))
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}
	p.metrics.EndStage(stageSplit, train.NumRows())

	verification.Checks = append(verification.Checks,
		p.verifier.VerifyPartition(train, eval, modelTable.NumRows()),
		p.verifier.VerifyTrainSize(train, p.cfg.SplitFraction, modelTable.NumRows()))

	if !verification.AllPassed() {
		err := fmt.Errorf("verification failed: %d check(s) did not pass", len(verification.Failed()))
		p.ledger.Record(NewRecord(err, CategoryEvaluation).WithStage(stageSplit))
		return nil, err
	}

	p.metrics.StartStage(stageModel, train.NumRows())
	outcomes, err := p.runStrategies(train, eval)
	if err != nil {
		p.ledger.Record(NewRecord(err, CategoryModel).WithStage(stageModel))
		return nil, err
	}
	p.metrics.EndStage(stageModel, eval.NumRows())

	p.metrics.Complete()
	finishedAt := time.Now()

	p.logger.Info("Pipeline run finished",
		zap.String("runId", runID.String()),
		zap.Int("rowsLoaded", raw.NumRows()),
		zap.Int("rowsClean", cleaned.Table.NumRows()),
		zap.Int("trainRows", train.NumRows()),
		zap.Int("evalRows", eval.NumRows()),
		zap.Int("strategies", len(outcomes)),
		zap.Duration("duration", finishedAt.Sub(startedAt)),
	)

	return &RunResult{
		RunID:        runID,
		Source:       p.cfg.SourceKind,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		RowsLoaded:   raw.NumRows(),
		Cleaning:     cleaned,
		Aggregates:   views,
		Train:        train,
		Eval:         eval,
		Strategies:   outcomes,
		Verification: verification,
	}, nil
}

// buildAggregates produces the four grouped count views. The borough by
// hour view doubles as the modeling table.
func (p *Pipeline) buildAggregates(cleaned *model.Table) ([]AggregateView, *model.Table, error) {
	borough := p.cfg.BoroughColumn

	byHour, err := aggregate.CountBy(cleaned, cleaner.HourColumn)
	if err != nil {
		return nil, nil, err
	}
	byWeekday, err := aggregate.CountBy(cleaned, cleaner.WeekdayColumn)
	if err != nil {
		return nil, nil, err
	}
	byBorough, err := aggregate.CountBy(cleaned, borough)
	if err != nil {
		return nil, nil, err
	}
	byBoroughHour, err := aggregate.CountBy(cleaned, borough, cleaner.HourColumn)
	if err != nil {
		return nil, nil, err
	}

	views := []AggregateView{
		{
			Name:        "Counts by hour",
			LabelColumn: cleaner.HourColumn,
			Table:       aggregate.SortByColumn(byHour, cleaner.HourColumn),
			ChartFile:   "counts_by_hour.png",
		},
		{
			Name:        "Counts by weekday",
			LabelColumn: cleaner.WeekdayColumn,
			Table:       aggregate.SortByWeekday(byWeekday, cleaner.WeekdayColumn),
			ChartFile:   "counts_by_weekday.png",
		},
		{
			Name:        "Counts by borough",
			LabelColumn: borough,
			Table:       aggregate.SortByCountDesc(byBorough),
			ChartFile:   "counts_by_borough.png",
		},
		{
			Name:        "Counts by borough and hour",
			LabelColumn: cleaner.HourColumn,
			GroupColumn: borough,
			Table:       aggregate.SortByColumns(byBoroughHour, borough, cleaner.HourColumn),
			ChartFile:   "counts_by_borough_hour.png",
		},
	}

	return views, views[3].Table, nil
}

// runStrategies fits and evaluates every configured strategy against
// the same train/eval split
func (p *Pipeline) runStrategies(train, eval *model.Table) ([]StrategyOutcome, error) {
	features, err := predictor.NewFeatures(train, eval, cleaner.HourColumn, p.cfg.BoroughColumn, aggregate.CountColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to derive model features: %w", err)
	}

	forestOpts := predictor.ForestOptions{
		Trees:            p.cfg.ForestTrees,
		FeaturesPerSplit: p.cfg.ForestFeatures,
		MaxDepth:         p.cfg.ForestMaxDepth,
		MinSamplesSplit:  p.cfg.ForestMinSamples,
		Seed:             p.cfg.Seed,
	}

	outcomes := make([]StrategyOutcome, 0, len(p.cfg.Strategies))
	for _, name := range p.cfg.Strategies {
		strategy, err := predictor.ForName(name, features, forestOpts)
		if err != nil {
			return nil, err
		}

		fitStart := time.Now()
		if err := strategy.Fit(train); err != nil {
			return nil, fmt.Errorf("failed to fit %s model: %w", strategy.Name(), err)
		}

		predictions, err := strategy.Predict(eval)
		if err != nil {
			return nil, fmt.Errorf("failed to predict with %s model: %w", strategy.Name(), err)
		}

		pairs, err := evaluate.Pairs(eval, predictions, aggregate.CountColumn)
		if err != nil {
			return nil, fmt.Errorf("failed to align %s predictions: %w", strategy.Name(), err)
		}

		outcome := StrategyOutcome{
			Name:    strategy.Name(),
			Pairs:   pairs,
			Summary: evaluate.Summarize(pairs),
		}
		switch s := strategy.(type) {
		case *predictor.Linear:
			outcome.Coefficients = s.Coefficients()
		case *predictor.Forest:
			outcome.TreeCount = s.TreeCount()
		}
		outcomes = append(outcomes, outcome)

		p.logger.Info("Strategy evaluated",
			zap.String("strategy", outcome.Name),
			zap.Int("pairs", outcome.Summary.Pairs),
			zap.Float64("rmse", outcome.Summary.RMSE),
			zap.Float64("mae", outcome.Summary.MAE),
			zap.Float64("rSquared", outcome.Summary.RSquared),
			zap.Duration("duration", time.Since(fitStart)),
		)
	}

	return outcomes, nil
}

// RenderReport writes charts and the workbook for a finished run,
// returning the paths written
func (p *Pipeline) RenderReport(result *RunResult) ([]string, error) {
	if p.reporter == nil {
		return nil, errors.New("no reporter configured")
	}

	p.metrics.StartStage(stageReport, 0)

	var paths []string
	for _, view := range result.Aggregates {
		if view.ChartFile == "" {
			continue
		}

		var path string
		var err error
		if view.GroupColumn != "" {
			chartTable := aggregate.SortByColumns(view.Table, view.LabelColumn, view.GroupColumn)
			path, err = p.reporter.GroupedCountBarChart(chartTable, view.LabelColumn, view.GroupColumn, aggregate.CountColumn, view.Name, view.ChartFile)
		} else {
			path, err = p.reporter.CountBarChart(view.Table, view.LabelColumn, aggregate.CountColumn, view.Name, view.ChartFile)
		}
		if err != nil {
			p.ledger.Record(NewRecord(err, CategoryReport).WithStage(stageReport))
			return paths, fmt.Errorf("failed to render %s chart: %w", view.Name, err)
		}
		paths = append(paths, path)
	}

	for _, outcome := range result.Strategies {
		path, err := p.reporter.PredictionScatter(outcome.Name, outcome.Pairs,
			fmt.Sprintf("predicted_vs_actual_%s.png", outcome.Name))
		if err != nil {
			p.ledger.Record(NewRecord(err, CategoryReport).WithStage(stageReport))
			return paths, fmt.Errorf("failed to render %s scatter: %w", outcome.Name, err)
		}
		paths = append(paths, path)
	}

	data := report.WorkbookData{
		RunID:       result.RunID.String(),
		GeneratedAt: result.FinishedAt,
		Aggregates:  make([]report.NamedTable, 0, len(result.Aggregates)),
		Evaluations: make([]report.StrategyResult, 0, len(result.Strategies)),
	}
	for _, view := range result.Aggregates {
		data.Aggregates = append(data.Aggregates, report.NamedTable{Name: view.Name, Table: view.Table})
	}
	for _, outcome := range result.Strategies {
		data.Evaluations = append(data.Evaluations, report.StrategyResult{
			Strategy: outcome.Name,
			Pairs:    outcome.Pairs,
			Summary:  outcome.Summary,
		})
		if outcome.Coefficients != nil {
			data.Coefficients = outcome.Coefficients
		}
	}

	path, err := p.reporter.WriteWorkbook(data, "incident_report.xlsx")
	if err != nil {
		p.ledger.Record(NewRecord(err, CategoryReport).WithStage(stageReport))
		return paths, fmt.Errorf("failed to write workbook: %w", err)
	}
	paths = append(paths, path)

	p.metrics.EndStage(stageReport, len(paths))
	return paths, nil
}

// PersistRun stores a finished run's results through the configured sink
func (p *Pipeline) PersistRun(ctx context.Context, result *RunResult) error {
	if p.sink == nil {
		return errors.New("no sink configured")
	}

	p.metrics.StartStage(stageStore, 0)

	if err := p.sink.EnsureTables(ctx); err != nil {
		p.ledger.Record(NewRecord(err, CategoryStorage).WithStage(stageStore))
		return fmt.Errorf("failed to ensure result tables: %w", err)
	}

	record := sink.RunRecord{
		RunID:               result.RunID,
		Source:              result.Source,
		StartedAt:           result.StartedAt,
		FinishedAt:          result.FinishedAt,
		RowsLoaded:          result.RowsLoaded,
		ColumnsDropped:      len(result.Cleaning.ColumnsDropped),
		RowsDroppedBorough:  result.Cleaning.RowsDroppedBorough,
		RowsDroppedUnparsed: result.Cleaning.RowsDroppedUnparsed,
		RowsClean:           result.Cleaning.Table.NumRows(),
		TrainRows:           result.Train.NumRows(),
		EvalRows:            result.Eval.NumRows(),
		Operations:          result.Cleaning.Operations,
	}
	for _, outcome := range result.Strategies {
		record.Metrics = append(record.Metrics, sink.MetricRecord{
			Strategy: outcome.Name,
			Pairs:    outcome.Summary.Pairs,
			RMSE:     outcome.Summary.RMSE,
			MAE:      outcome.Summary.MAE,
			RSquared: outcome.Summary.RSquared,
		})
		for i, pair := range outcome.Pairs {
			record.Predictions = append(record.Predictions, sink.PredictionRecord{
				Strategy:  outcome.Name,
				RowIndex:  i,
				Actual:    pair.Actual,
				Predicted: pair.Predicted,
			})
		}
	}

	if err := p.sink.StoreRun(ctx, record); err != nil {
		p.ledger.Record(NewRecord(err, CategoryStorage).WithStage(stageStore))
		return fmt.Errorf("failed to store run results: %w", err)
	}

	p.metrics.EndStage(stageStore, len(record.Predictions))
	return nil
}
