package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyBorrowed is returned when a borrow targets a book already
	// in the caller's own borrowed set.
	ErrAlreadyBorrowed = errors.New("you have already borrowed this book")

	// ErrNotPermitted is returned when a non-admin caller attempts an
	// admin-only operation.
	ErrNotPermitted = errors.New("operation requires admin capability")
)

// ValidationError reports the first missing required field of an
// add-book form.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// FetchError wraps a failed catalog load. The session keeps its prior
// in-memory list (stale-but-available) when a load fails.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch catalog: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }
