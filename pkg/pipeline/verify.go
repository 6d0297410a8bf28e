// pkg/pipeline/verify.go
package pipeline

import (
	"go.uber.org/zap"

	"github.com/citylab/incident-report/pkg/model"
)

// CheckResult is the outcome of one consistency check
type CheckResult struct {
	Name   string
	Passed bool
	Want   int64
	Got    int64
}

// VerificationReport collects the consistency checks run after
// aggregation and splitting
type VerificationReport struct {
	Checks []CheckResult
}

// AllPassed reports whether every check passed
func (r *VerificationReport) AllPassed() bool {
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass
func (r *VerificationReport) Failed() []CheckResult {
	var failed []CheckResult
	for _, check := range r.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

// Verifier checks the arithmetic laws the pipeline must preserve: group
// counts sum back to the cleaned row count, and the split subsets
// partition their input
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a new Verifier instance
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// VerifyCountSum checks that an aggregate's counts sum to the number of
// rows that entered aggregation
func (v *Verifier) VerifyCountSum(name string, table *model.Table, countColumn string, want int) CheckResult {
	var total int64
	for i := 0; i < table.NumRows(); i++ {
		count, ok := table.IntAt(i, countColumn)
		if !ok {
			continue
		}
		total += count
	}

	check := CheckResult{
		Name:   name,
		Passed: total == int64(want),
		Want:   int64(want),
		Got:    total,
	}
	v.log(check)
	return check
}

// VerifyPartition checks that the training and evaluation subsets cover
// the split input exactly
func (v *Verifier) VerifyPartition(train, eval *model.Table, want int) CheckResult {
	check := CheckResult{
		Name:   "split partition",
		Passed: train.NumRows()+eval.NumRows() == want,
		Want:   int64(want),
		Got:    int64(train.NumRows() + eval.NumRows()),
	}
	v.log(check)
	return check
}

// VerifyTrainSize checks that the training subset holds the floor of
// fraction times the split input size
func (v *Verifier) VerifyTrainSize(train *model.Table, fraction float64, total int) CheckResult {
	want := int64(fraction * float64(total))

	check := CheckResult{
		Name:   "train size",
		Passed: int64(train.NumRows()) == want,
		Want:   want,
		Got:    int64(train.NumRows()),
	}
	v.log(check)
	return check
}

func (v *Verifier) log(check CheckResult) {
	if v.logger == nil {
		return
	}

	if check.Passed {
		v.logger.Info("Verification check passed",
			zap.String("check", check.Name),
			zap.Int64("count", check.Got),
		)
		return
	}

	v.logger.Warn("Verification check failed",
		zap.String("check", check.Name),
		zap.Int64("want", check.Want),
		zap.Int64("got", check.Got),
		zap.Int64("difference", check.Want-check.Got),
	)
}
