// pkg/pipeline/metrics.go
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageMetrics tracks the timing and row flow of one pipeline stage
type StageMetrics struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	RowsIn    int
	RowsOut   int
}

// Duration returns the stage duration, or the elapsed time if the
// stage is still running
func (sm *StageMetrics) Duration() time.Duration {
	if sm.EndTime.IsZero() {
		return time.Since(sm.StartTime)
	}
	return sm.EndTime.Sub(sm.StartTime)
}

// RunMetrics tracks timings and row counts across a whole run
type RunMetrics struct {
	logger *zap.Logger

	mu        sync.Mutex
	StartTime time.Time
	EndTime   time.Time
	stages    []*StageMetrics
	byName    map[string]*StageMetrics
}

// NewRunMetrics creates run metrics starting now
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:    logger,
		StartTime: time.Now(),
		byName:    make(map[string]*StageMetrics),
	}
}

// StartStage begins tracking one named stage
func (rm *RunMetrics) StartStage(name string, rowsIn int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm := &StageMetrics{
		Name:      name,
		StartTime: time.Now(),
		RowsIn:    rowsIn,
	}
	rm.stages = append(rm.stages, sm)
	rm.byName[name] = sm

	if rm.logger != nil {
		rm.logger.Debug("Stage started",
			zap.String("stage", name),
			zap.Int("rowsIn", rowsIn),
		)
	}
}

// EndStage finishes tracking one named stage. Unknown names are ignored.
func (rm *RunMetrics) EndStage(name string, rowsOut int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm, exists := rm.byName[name]
	if !exists {
		return
	}
	sm.EndTime = time.Now()
	sm.RowsOut = rowsOut

	if rm.logger != nil {
		rm.logger.Info("Stage completed",
			zap.String("stage", name),
			zap.Int("rowsIn", sm.RowsIn),
			zap.Int("rowsOut", rowsOut),
			zap.Duration("duration", sm.Duration()),
		)
	}
}

// Stages returns a snapshot of the stages in execution order
func (rm *RunMetrics) Stages() []StageMetrics {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	stages := make([]StageMetrics, len(rm.stages))
	for i, sm := range rm.stages {
		stages[i] = *sm
	}
	return stages
}

// Duration returns the run duration, or the elapsed time if the run has
// not completed
func (rm *RunMetrics) Duration() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// Complete marks the run as finished and logs a summary
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	rm.EndTime = time.Now()
	duration := rm.EndTime.Sub(rm.StartTime)
	stageCount := len(rm.stages)
	rm.mu.Unlock()

	if rm.logger != nil {
		rm.logger.Info("Run completed",
			zap.Int("stages", stageCount),
			zap.Duration("totalDuration", duration),
		)
	}
}

// Report generates a human-readable summary of the run
func (rm *RunMetrics) Report() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("=== Run Metrics Report ===\n")
	sb.WriteString(fmt.Sprintf("Started: %s\n", rm.StartTime.Format(time.RFC3339)))
	if !rm.EndTime.IsZero() {
		sb.WriteString(fmt.Sprintf("Finished: %s\n", rm.EndTime.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(rm.EndTime.Sub(rm.StartTime))))
	} else {
		sb.WriteString(fmt.Sprintf("Elapsed: %s (still running)\n", formatDuration(time.Since(rm.StartTime))))
	}

	sb.WriteString("\nStages:\n")
	for _, sm := range rm.stages {
		sb.WriteString(fmt.Sprintf("  %-10s rows in: %-8d rows out: %-8d duration: %s\n",
			sm.Name, sm.RowsIn, sm.RowsOut, formatDuration(sm.Duration())))
	}

	return sb.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
