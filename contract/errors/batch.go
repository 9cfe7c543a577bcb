package errors

import (
	"fmt"
	"strings"
)

// BatchFailure pairs one failed event with its cause.
type BatchFailure struct {
	Index   int
	EventID string
	Err     error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("event %s (index %d): %v", f.EventID, f.Index, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }

// BatchError aggregates the failures of a sequential batch publish.
// It enumerates every failed event paired with its cause; successfully
// published events are not represented (they are observable via logging only).
//
// Unwrap exposes the individual failures so errors.Is classification
// (e.g. IsTransient) sees through the aggregate.
type BatchError struct {
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of batch failed: ", len(e.Failures))

	for i, f := range e.Failures {
		if i > 0 {
			b.WriteString("; ")
		}

		b.WriteString(f.Error())
	}

	return b.String()
}

// Unwrap returns the individual failures for errors.Is / errors.As traversal.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}

	return errs
}

// Append records one failed event.
func (e *BatchError) Append(index int, eventID string, err error) {
	e.Failures = append(e.Failures, BatchFailure{Index: index, EventID: eventID, Err: err})
}

// OrNil returns the aggregate as an error, or nil when nothing failed.
func (e *BatchError) OrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}

	return e
}
