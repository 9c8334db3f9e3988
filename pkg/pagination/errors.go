package pagination

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// Reasons an aggregation fails. AggregationError matches its reason with
// errors.Is.
var (
	ErrFetchFailed      = errors.New("first page fetch failed")
	ErrPartialFailure   = errors.New("page fetch failed mid-aggregation")
	ErrCountMismatch    = errors.New("entry count does not match declared total")
	ErrInconsistentPage = errors.New("page did not match the parser contract")
	ErrCancelled        = errors.New("aggregation cancelled")
)

// AggregationError carries the full context of a failed aggregation.
type AggregationError struct {
	Reason  error
	Subject model.ID
	Kind    Kind

	// Page is the page being processed when the failure happened.
	Page int

	// CompletedPages and TotalPages are set for PartialFailure and Cancelled.
	CompletedPages int
	TotalPages     int

	// Expected and Actual are set for CountMismatch.
	Expected int
	Actual   int

	// Err is the underlying fetch or parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	prefix := fmt.Sprintf("aggregate %s %q", e.Kind, e.Subject)

	var detail string
	switch e.Reason {
	case ErrPartialFailure:
		detail = fmt.Sprintf("%v: page %d (%d/%d pages completed)", e.Reason, e.Page, e.CompletedPages, e.TotalPages)
	case ErrCountMismatch:
		detail = fmt.Sprintf("%v: expected %d, got %d", e.Reason, e.Expected, e.Actual)
	case ErrCancelled:
		if e.TotalPages > 0 {
			detail = fmt.Sprintf("%v after %d/%d pages", e.Reason, e.CompletedPages, e.TotalPages)
		} else {
			detail = e.Reason.Error()
		}
	default:
		detail = fmt.Sprintf("%v: page %d", e.Reason, e.Page)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, detail, e.Err)
	}
	return prefix + ": " + detail
}

// Unwrap exposes both the reason and the underlying error.
func (e *AggregationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
