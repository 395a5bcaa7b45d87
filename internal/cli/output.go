package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/deplag/internal/config"
	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/runner"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run failure (misaligned output, interrupted run, etc.)
	ExitCommandError = 2 // Command error (invalid flags, unreadable files, bad config, etc.)
)

// Error codes reported in CLIError.Code for failures without their own code.
const (
	ErrCodeInterrupted = "INTERRUPTED"
	ErrCodeRunFailed   = "RUN_FAILED"
	ErrCodeStore       = "STORE_ERROR"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the machine-readable code for a run error.
func ErrorCode(err error) string {
	var ae *reconcile.AlignmentError
	var ce *config.Error
	switch {
	case errors.As(err, &ae):
		return string(ae.Code)
	case runner.IsSourceUnavailable(err):
		return "SOURCE_UNAVAILABLE"
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeInterrupted
	default:
		return ErrCodeRunFailed
	}
}

// runExitError maps a runner error to an exit code: unreadable inputs and
// bad configuration are command errors, everything else is a run failure.
func runExitError(err error) *ExitError {
	switch code := ErrorCode(err); code {
	case "SOURCE_UNAVAILABLE", config.ErrCodeInvalid, config.ErrCodeNotFound:
		return WrapExitError(ExitCommandError, "cannot start run", err)
	case ErrCodeInterrupted:
		return WrapExitError(ExitFailure, "run interrupted", err)
	default:
		return WrapExitError(ExitFailure, "run failed", err)
	}
}

// OutputFormatter writes command results and errors as text or JSON.
type OutputFormatter struct {
	Format  string // "text" or "json"
	Writer  io.Writer
	Verbose bool
}

// textReport is implemented by results that render their own text form.
// Results without it are printed with fmt.Fprintln.
type textReport interface {
	writeText(w io.Writer, verbose bool)
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // WORD_COUNT_MISMATCH, SOURCE_UNAVAILABLE, ...
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes a command result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textReport); ok {
		r.writeText(f.Writer, f.Verbose)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. details are printed in text mode only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}
