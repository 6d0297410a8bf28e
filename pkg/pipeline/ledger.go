// pkg/pipeline/ledger.go
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category classifies where in the run a problem surfaced
type Category int

const (
	CategoryNone Category = iota
	CategorySource
	CategorySchema
	CategoryParse
	CategoryModel
	CategoryEvaluation
	CategoryReport
	CategoryStorage
)

// String returns a string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "None"
	case CategorySource:
		return "Source"
	case CategorySchema:
		return "Schema"
	case CategoryParse:
		return "Parse"
	case CategoryModel:
		return "Model"
	case CategoryEvaluation:
		return "Evaluation"
	case CategoryReport:
		return "Report"
	case CategoryStorage:
		return "Storage"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Recoverable reports whether records of this category leave the run
// able to continue. Only parse problems are recovered; every other
// category aborts the stage that raised it.
func (c Category) Recoverable() bool {
	return c == CategoryParse
}

// Record represents one problem observed during a run
type Record struct {
	Category  Category
	Stage     string
	Column    string
	Value     interface{}
	Err       error
	Message   string
	Timestamp time.Time
}

// NewRecord creates a record with the current timestamp
func NewRecord(err error, category Category) Record {
	record := Record{
		Category:  category,
		Err:       err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}

// WithStage adds the pipeline stage that raised the problem
func (r Record) WithStage(stage string) Record {
	r.Stage = stage
	return r
}

// WithColumn adds the column and offending value to the record
func (r Record) WithColumn(column string, value interface{}) Record {
	r.Column = column
	r.Value = value
	return r
}

// String returns a formatted representation of the record
func (r Record) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}
	if r.Column != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", r.Column))
		if r.Value != nil {
			sb.WriteString(fmt.Sprintf("Value: %v ", r.Value))
		}
	}
	if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	return sb.String()
}

// Ledger accumulates the problems a run encounters, keeping per-category
// counts, a bounded number of sample records for the final summary, and
// optional per-category limits that turn excessive recoverable problems
// into a run abort
type Ledger struct {
	logger *zap.Logger

	mu         sync.Mutex
	counts     map[Category]int
	samples    map[Category][]Record
	limits     map[Category]int
	maxSamples int
}

// NewLedger creates a ledger that logs through the given logger. No
// limits are set; categories stay unlimited until SetLimit is called.
func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{
		logger:     logger,
		counts:     make(map[Category]int),
		samples:    make(map[Category][]Record),
		limits:     make(map[Category]int),
		maxSamples: 5,
	}
}

// SetLimit caps how many problems of one category a run tolerates. A
// negative limit removes the cap.
func (l *Ledger) SetLimit(category Category, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit < 0 {
		delete(l.limits, category)
		return
	}
	l.limits[category] = limit
}

// Record stores one problem occurrence and logs it at a level matching
// its severity
func (l *Ledger) Record(record Record) {
	l.mu.Lock()
	l.counts[record.Category]++
	if samples := l.samples[record.Category]; len(samples) < l.maxSamples {
		l.samples[record.Category] = append(samples, record)
	}
	l.mu.Unlock()

	if l.logger == nil {
		return
	}

	level := zap.ErrorLevel
	if record.Category.Recoverable() {
		level = zap.DebugLevel
	}

	l.logger.Log(level, "Run problem recorded",
		zap.String("category", record.Category.String()),
		zap.String("stage", record.Stage),
		zap.String("column", record.Column),
		zap.String("error", record.Message),
	)
}

// Count returns how many problems of one category were recorded
func (l *Ledger) Count(category Category) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counts[category]
}

// Summary returns a copy of the per-category problem counts
func (l *Ledger) Summary() map[Category]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := make(map[Category]int, len(l.counts))
	for category, count := range l.counts {
		summary[category] = count
	}
	return summary
}

// Samples returns a copy of the sampled records for one category
func (l *Ledger) Samples(category Category) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	samples := make([]Record, len(l.samples[category]))
	copy(samples, l.samples[category])
	return samples
}

// Breached reports a category whose recorded count exceeds its
// configured limit. Categories without a limit never breach.
func (l *Ledger) Breached() (Category, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for category, limit := range l.limits {
		count := l.counts[category]
		if count <= limit {
			continue
		}
		if l.logger != nil {
			l.logger.Warn("Problem limit breached",
				zap.String("category", category.String()),
				zap.Int("count", count),
				zap.Int("limit", limit),
			)
		}
		return category, true
	}
	return CategoryNone, false
}

// HasFatal reports whether any non-recoverable problem was recorded
func (l *Ledger) HasFatal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for category, count := range l.counts {
		if count > 0 && !category.Recoverable() {
			return true
		}
	}
	return false
}
