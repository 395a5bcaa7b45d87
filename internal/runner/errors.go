package runner

import (
	"errors"
	"fmt"
)

// SourceError reports an input or output that cannot be opened. It is fatal
// and never retried.
type SourceError struct {
	// Role is "input" or "output".
	Role string

	// Path is the file that could not be opened.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("SOURCE_UNAVAILABLE: %s %s: %v", e.Role, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceUnavailable returns true if err is or wraps a SourceError.
// Uses errors.As to handle wrapped errors.
func IsSourceUnavailable(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
