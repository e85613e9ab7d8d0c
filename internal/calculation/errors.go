package calculation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrCancelled is returned when a run is stopped before every trajectory finished.
	// No partial result accompanies it.
	ErrCancelled = errors.New("simulation cancelled")

	// ErrNotFound is returned for lookups outside a table's published range.
	ErrNotFound = errors.New("not found")

	// ErrDataUnavailable marks external data gaps (missing tables, short RMD coverage).
	ErrDataUnavailable = errors.New("data unavailable")
)

// FieldError names one invalid field of a scenario or table.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every structural problem found in one pass.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Error()
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("validation failed (%d problems): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes wrapped field causes, such as a *BracketError, to errors.As.
func (e *ValidationError) Unwrap() []error {
	var out []error
	for _, fe := range e.Errors {
		if fe.Err != nil {
			out = append(out, fe.Err)
		}
	}
	return out
}

// Add records a problem.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// AddErr records a problem caused by err.
func (e *ValidationError) AddErr(field string, err error) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: err.Error(), Err: err})
}

// Merge appends the problems of other, if any.
func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Errors = append(e.Errors, other.Errors...)
	}
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BracketRule names the table invariant a BracketError violates.
type BracketRule string

const (
	RuleMissingPartition BracketRule = "missing_partition"
	RuleNonZeroStart     BracketRule = "nonzero_start"
	RuleDiscontinuity    BracketRule = "discontinuity"
	RuleUnboundedNotLast BracketRule = "unbounded_not_last"
	RuleInvertedRange    BracketRule = "inverted_range"
	RuleInvalidRate      BracketRule = "invalid_rate"
)

// BracketError reports one bracket table invariant violation.
type BracketError struct {
	Family       string
	Jurisdiction string
	FilingStatus string
	Index        int
	Rule         BracketRule
	Expected     decimal.Decimal
	Actual       decimal.Decimal
}

func (e *BracketError) Error() string {
	where := e.Family
	if e.Jurisdiction != "" {
		where += "/" + e.Jurisdiction
	}
	where += "/" + e.FilingStatus

	switch e.Rule {
	case RuleMissingPartition:
		return fmt.Sprintf("%s: no brackets for filing status", where)
	case RuleNonZeroStart:
		return fmt.Sprintf("%s: first bracket starts at %s, expected 0", where, e.Actual)
	case RuleDiscontinuity:
		return fmt.Sprintf("%s: bracket %d starts at %s, expected %s", where, e.Index, e.Actual, e.Expected)
	case RuleUnboundedNotLast:
		return fmt.Sprintf("%s: bracket %d is unbounded but not last", where, e.Index)
	case RuleInvertedRange:
		return fmt.Sprintf("%s: bracket %d max %s is below min %s", where, e.Index, e.Actual, e.Expected)
	case RuleInvalidRate:
		return fmt.Sprintf("%s: bracket %d rate %s outside [0,1]", where, e.Index, e.Actual)
	}
	return fmt.Sprintf("%s: bracket %d violates %s", where, e.Index, e.Rule)
}

// DataError reports missing or incomplete external data.
type DataError struct {
	Source string
	Detail string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Detail)
}

// Unwrap lets callers match any DataError with errors.Is(err, ErrDataUnavailable).
func (e *DataError) Unwrap() error { return ErrDataUnavailable }
