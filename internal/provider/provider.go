// Package provider defines the external synonym source and its
// implementations.
//
// A Provider answers two questions about a word: which grammatical tags it
// carries, and which candidate replacements exist (each with their own tags).
// Providers never retry. Failures that may succeed on a later attempt are
// reported as *TransientError so the resolver can back off and try again;
// malformed or empty answers are reported as empty results, not errors.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one suggested replacement with its grammatical tags.
type Candidate struct {
	Word string   `json:"word" yaml:"word"`
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Provider supplies grammatical tags and candidate substitutes.
type Provider interface {
	// PartsOfSpeech returns the tags of word. An unknown word yields an
	// empty slice and no error.
	PartsOfSpeech(ctx context.Context, word string) ([]string, error)

	// Candidates returns replacement candidates for word in preference order.
	Candidates(ctx context.Context, word string) ([]Candidate, error)
}

// TransientError reports a provider failure worth retrying: a transport
// error, a timeout, a 5xx or a 429 response.
type TransientError struct {
	// Op names the failed call ("parts_of_speech" or "candidates").
	Op string

	// Word is the word being looked up.
	Word string

	// Status is the HTTP status code, or 0 for transport failures.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %q: transient provider failure (status %d)", e.Op, e.Word, e.Status)
	}
	return fmt.Sprintf("%s %q: transient provider failure: %v", e.Op, e.Word, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
