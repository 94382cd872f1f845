package redsift

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Query planning errors
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyQuery    = errors.New("query has no usable filters")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidRange  = errors.New("range filter requires two endpoints")

	// Data errors
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidData = errors.New("invalid data format")

	// Store errors
	ErrStoreUnavailable = errors.New("redis unavailable")
	ErrTimeout          = errors.New("operation timed out")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSchema = errors.New("invalid schema")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPlanningError checks if an error was raised before any execution happened
// (bad column, empty filter list). These are caller bugs, never transient.
func IsPlanningError(err error) bool {
	return errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrInvalidRange)
}

// IsRetryable checks if an error is safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStoreUnavailable)
}
