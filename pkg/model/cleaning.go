// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningOperation represents a single change the cleaning stages made
// to the dataset, kept for auditability of every dropped column, dropped
// row, and derived field.
type CleaningOperation struct {
	Stage         string      // Pipeline stage that applied the change
	Column        string      // Column the change concerns (may be empty for row drops)
	RowIndex      int         // Source row index; -1 for column-level operations
	OriginalValue interface{} // Original value (may be nil)
	NewValue      interface{} // Value after the change (nil for drops)
	Operation     string      // Type of change performed (e.g. "drop_column")
	Reason        string      // Why the change was applied (e.g. "missing_ratio_above_threshold")
	AppliedAt     time.Time   // When the change occurred
}

// CleaningContext carries the fixed identifiers stages stamp onto every
// operation they emit
type CleaningContext struct {
	Stage      string
	DateColumn string
	TimeColumn string
	Borough    string
}
