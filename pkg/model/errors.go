// pkg/model/errors.go
package model

import "fmt"

// SchemaError indicates a column the pipeline requires is absent from
// the input schema entirely. Distinct from "present but all-null",
// which is handled by row filtering.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q is missing from the input schema", e.Column)
}

// ParseError indicates a single value failed to parse into its declared
// type. Recovered locally: the affected row's derived fields become null
// and the row is excluded before aggregation.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %s value %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("cannot parse %s value %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InsufficientDataError indicates model fitting cannot proceed: the
// training set is empty or the categorical predictor has fewer than two
// distinct levels.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for model fitting: %s", e.Reason)
}

// AlignmentError indicates a prediction sequence does not line up with
// the evaluation rows it was produced for. This is an internal
// consistency failure and always aborts the run.
type AlignmentError struct {
	Want int
	Got  int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("prediction count %d does not match evaluation row count %d", e.Got, e.Want)
}
