package token

import (
	"sync"
	"unicode/utf8"
)

// Index is the zero-based ordinal of a token within its source.
//
// The tokenizer assigns indexes in strictly increasing order, so an Index is
// also the number of tokens that precede the token in the source. A resume
// offset is an Index: skipping n tokens positions the tokenizer at Index n.
type Index int64

// Token is one whitespace-terminated unit of source text.
//
// The parsed fields are set by New and never change. The completion slot is
// written once by Complete or Abort; Done is closed at that moment.
type Token struct {
	// Index is the token's ordinal within its source.
	Index Index

	// Offset is the number of characters (runes) consumed before this token.
	Offset int64

	// Raw is the exact source text, including trailing whitespace.
	Raw string

	// Leading is the punctuation run before the core word. For tokens with
	// no letters it holds the whole non-whitespace text.
	Leading string

	// Core is the letter-bearing word after punctuation trimming.
	// Empty for tokens without letters.
	Core string

	// Trailing is the punctuation run after the core word.
	Trailing string

	// Whitespace is the whitespace run that terminated the token.
	Whitespace string

	once        sync.Once
	done        chan struct{}
	transformed string
	err         error
}

// New parses raw into a Token positioned at idx and offset.
func New(raw string, idx Index, offset int64) *Token {
	leading, core, trailing, ws := Parse(raw)
	return &Token{
		Index:      idx,
		Offset:     offset,
		Raw:        raw,
		Leading:    leading,
		Core:       core,
		Trailing:   trailing,
		Whitespace: ws,
		done:       make(chan struct{}),
	}
}

// Len returns the token's length in characters.
func (t *Token) Len() int64 {
	return int64(utf8.RuneCountInString(t.Raw))
}

// Complete records the replacement for the core word and closes Done.
// Returns false if the token had already settled; the first value wins.
func (t *Token) Complete(replacement string) bool {
	return t.settle(replacement, nil)
}

// Abort settles the token without a replacement. Err reports the cause.
// Returns false if the token had already settled.
func (t *Token) Abort(err error) bool {
	return t.settle("", err)
}

func (t *Token) settle(replacement string, err error) bool {
	settled := false
	t.once.Do(func() {
		t.transformed = replacement
		t.err = err
		settled = true
		close(t.done)
	})
	return settled
}

// Done returns a channel that is closed once the token has settled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Settled reports whether Complete or Abort has been called, without blocking.
func (t *Token) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Transformed returns the replacement core word and whether it is available.
// It is only meaningful after Done is closed.
func (t *Token) Transformed() (string, bool) {
	if !t.Settled() || t.err != nil {
		return "", false
	}
	return t.transformed, true
}

// Err returns the abort cause, or nil.
// Only meaningful after Done is closed.
func (t *Token) Err() error {
	if !t.Settled() {
		return nil
	}
	return t.err
}

// Format renders the token's output text.
//
// A settled token renders its replacement with the core word's casing
// applied. An unsettled or aborted token renders its original text.
func (t *Token) Format() string {
	replacement, ok := t.Transformed()
	if !ok {
		return t.Raw
	}
	return Render(t.Leading, t.Core, replacement, t.Trailing, t.Whitespace)
}
