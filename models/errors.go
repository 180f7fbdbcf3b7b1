package models

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderFailure marks a source adapter that could not produce records.
	ErrProviderFailure = errors.New("provider failure")
	// ErrNotificationFailure marks a digest that could not be delivered.
	ErrNotificationFailure = errors.New("notification failure")
	// ErrNothingToReport is returned when the report window is empty.
	ErrNothingToReport = errors.New("nothing to report")
	// ErrFatalConfiguration aborts the process before any work starts.
	ErrFatalConfiguration = errors.New("fatal configuration error")
)

// ValidationError is raised when a raw record cannot become a Listing.
type ValidationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s %s", e.Source, e.Field, e.Reason)
}

// PersistenceError wraps an unexpected store failure for one listing.
type PersistenceError struct {
	ListingID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.ListingID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
