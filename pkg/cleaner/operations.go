// pkg/cleaner/operations.go
package cleaner

import (
	"errors"
	"fmt"
	"time"

	"github.com/citylab/incident-report/pkg/model"
)

// Operation and reason labels recorded on the audit trail
const (
	opDropColumn  = "drop_column"
	opDropRow     = "drop_row"
	opNullDerived = "null_derived_fields"

	reasonMissingRatio   = "missing_ratio_at_or_above_threshold"
	reasonMissingBorough = "missing_required_borough"
	reasonUnparseable    = "unparseable_date_or_time"
)

// Stage names stamped onto operations
const (
	stageFilter    = "schema_filter"
	stageNormalize = "field_normalizer"
)

// errMissingValue marks a null cell where a parseable value was required
var errMissingValue = errors.New("value is missing")

// newDropColumnOp records a column dropped for exceeding the missing
// threshold
func newDropColumnOp(column string, ratio float64) model.CleaningOperation {
	return model.CleaningOperation{
		Stage:         stageFilter,
		Column:        column,
		RowIndex:      -1,
		OriginalValue: nil,
		NewValue:      nil,
		Operation:     opDropColumn,
		Reason:        fmt.Sprintf("%s (ratio=%.3f)", reasonMissingRatio, ratio),
		AppliedAt:     time.Now(),
	}
}

// newDropRowOp records a row excluded from the cleaned table
func newDropRowOp(column string, rowIndex int, value interface{}, reason string) model.CleaningOperation {
	stage := stageFilter
	if reason == reasonUnparseable {
		stage = stageNormalize
	}
	return model.CleaningOperation{
		Stage:         stage,
		Column:        column,
		RowIndex:      rowIndex,
		OriginalValue: value,
		NewValue:      nil,
		Operation:     opDropRow,
		Reason:        reason,
		AppliedAt:     time.Now(),
	}
}

// newNullDerivedOp records a row whose derived fields were nulled after
// a date or time parse failure
func newNullDerivedOp(rowIndex int, dateErr, timeErr error) model.CleaningOperation {
	reason := reasonUnparseable
	switch {
	case dateErr != nil && timeErr != nil:
		reason = fmt.Sprintf("%s: %v; %v", reasonUnparseable, dateErr, timeErr)
	case dateErr != nil:
		reason = fmt.Sprintf("%s: %v", reasonUnparseable, dateErr)
	case timeErr != nil:
		reason = fmt.Sprintf("%s: %v", reasonUnparseable, timeErr)
	}
	return model.CleaningOperation{
		Stage:     stageNormalize,
		RowIndex:  rowIndex,
		Operation: opNullDerived,
		Reason:    reason,
		AppliedAt: time.Now(),
	}
}

// parseFailure wraps a recovered per-row parse error with its field and
// raw value
func parseFailure(field string, value interface{}, err error) *model.ParseError {
	raw := ""
	if value != nil {
		raw = fmt.Sprintf("%v", value)
	}
	return &model.ParseError{
		Field: field,
		Value: raw,
		Err:   err,
	}
}
