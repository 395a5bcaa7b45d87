// Package tokenizer produces a lazy, position-tagged token sequence from text.
//
// A token is the maximal run of non-whitespace characters followed by the
// maximal run of whitespace after it. Whitespace binds to the word before it,
// so a source that begins with whitespace yields one whitespace-only token
// first. Independent runs over byte-identical text produce identical indexes
// and offsets, which is what lets a resume offset computed from one file seek
// into another.
package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/roach88/deplag/internal/token"
)

// Tokenizer reads tokens from an io.Reader.
//
// Not safe for concurrent use. Open separate Tokenizers for concurrent
// readers of the same file.
type Tokenizer struct {
	r      *bufio.Reader
	closer io.Closer
	next   token.Index
	offset int64
}

// New creates a Tokenizer over r.
func New(r io.Reader) *Tokenizer {
	return &Tokenizer{r: bufio.NewReader(r)}
}

// Open opens path read-only and returns a Tokenizer over it.
// The caller must Close the Tokenizer.
func Open(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	t := New(f)
	t.closer = f
	return t, nil
}

// Close releases the underlying file, if the Tokenizer owns one.
func (t *Tokenizer) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// Position returns the Index the next token will carry.
func (t *Tokenizer) Position() token.Index {
	return t.next
}

// Next returns the next token, or io.EOF once the source is exhausted.
func (t *Tokenizer) Next() (*token.Token, error) {
	raw, runes, err := t.read()
	if err != nil {
		return nil, err
	}
	tok := token.New(raw, t.next, t.offset)
	t.next++
	t.offset += runes
	return tok, nil
}

// Skip advances past the next n tokens without parsing them.
// Returns the number of tokens actually skipped, which is less than n only
// when the source ends first.
func (t *Tokenizer) Skip(n token.Index) (token.Index, error) {
	var skipped token.Index
	for skipped < n {
		_, runes, err := t.read()
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, fmt.Errorf("skip: %w", err)
		}
		skipped++
		t.next++
		t.offset += runes
	}
	return skipped, nil
}

// read consumes one raw token: at least one character, then non-whitespace up
// to and including the first whitespace character, then the rest of that
// whitespace run.
func (t *Tokenizer) read() (string, int64, error) {
	var b strings.Builder
	var runes int64

	r, _, err := t.r.ReadRune()
	if err != nil {
		return "", 0, err
	}
	b.WriteRune(r)
	runes++

	for !unicode.IsSpace(r) {
		r, _, err = t.r.ReadRune()
		if errors.Is(err, io.EOF) {
			return b.String(), runes, nil
		}
		if err != nil {
			return "", 0, err
		}
		b.WriteRune(r)
		runes++
	}

	for {
		r, _, err = t.r.ReadRune()
		if errors.Is(err, io.EOF) {
			return b.String(), runes, nil
		}
		if err != nil {
			return "", 0, err
		}
		if !unicode.IsSpace(r) {
			if err := t.r.UnreadRune(); err != nil {
				return "", 0, err
			}
			return b.String(), runes, nil
		}
		b.WriteRune(r)
		runes++
	}
}

// Count tokenizes r to completion and returns the number of tokens.
func Count(r io.Reader) (token.Index, error) {
	t := New(r)
	var n token.Index
	for {
		if _, _, err := t.read(); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		n++
	}
}

// CountFile counts the tokens in the file at path.
func CountFile(path string) (token.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Count(f)
}
