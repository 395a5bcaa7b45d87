package reconcile

import (
	"errors"
	"fmt"
)

// AlignmentError reports that an existing output cannot be matched against
// its input. It is fatal: no tokens are processed once it is returned.
type AlignmentError struct {
	// Code identifies the error category.
	Code AlignmentErrorCode

	// Message is a human-readable description.
	Message string

	// Line is the 1-based output line where alignment failed, or 0 when the
	// failure is not tied to a line.
	Line int

	// InputWords and OutputWords are the word counts of the failing line
	// pair, when applicable.
	InputWords  int
	OutputWords int
}

// AlignmentErrorCode categorizes alignment failures.
type AlignmentErrorCode string

const (
	// ErrCodeExtraOutputLine indicates an output line with no input line.
	ErrCodeExtraOutputLine AlignmentErrorCode = "EXTRA_OUTPUT_LINE"

	// ErrCodeWordCountMismatch indicates a complete output line whose word
	// count differs from its input line.
	ErrCodeWordCountMismatch AlignmentErrorCode = "WORD_COUNT_MISMATCH"

	// ErrCodeOutputLonger indicates the output holds more tokens than the
	// input, so there is nothing to resume from.
	ErrCodeOutputLonger AlignmentErrorCode = "OUTPUT_LONGER_THAN_INPUT"
)

// Error implements the error interface.
func (e *AlignmentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line=%d)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAlignmentError returns true if err is or wraps an AlignmentError.
func IsAlignmentError(err error) bool {
	var ae *AlignmentError
	return errors.As(err, &ae)
}
