package pipeline

import (
	"github.com/roach88/deplag/internal/token"
)

// window is the bounded, index-ordered set of in-flight tokens.
//
// Tokens are pushed in tokenizer order, which is strictly increasing Index
// order, so appending keeps the window sorted. Only a prefix is ever removed.
//
// Not thread-safe: owned by the Scheduler's Run goroutine. Resolution
// goroutines touch only their own token, never the window.
type window struct {
	tokens   []*token.Token
	capacity int
}

func newWindow(capacity int) *window {
	return &window{
		tokens:   make([]*token.Token, 0, capacity),
		capacity: capacity,
	}
}

// Full reports whether the window holds capacity tokens.
func (w *window) Full() bool {
	return len(w.tokens) >= w.capacity
}

// Len returns the number of tokens in the window.
func (w *window) Len() int {
	return len(w.tokens)
}

// Push appends tok. The caller guarantees tok's Index exceeds every Index in
// the window and that the window is not full.
func (w *window) Push(tok *token.Token) {
	w.tokens = append(w.tokens, tok)
}

// Head returns the lowest-index token, or nil when empty.
func (w *window) Head() *token.Token {
	if len(w.tokens) == 0 {
		return nil
	}
	return w.tokens[0]
}

// ReadyPrefix returns the maximal prefix of tokens that completed with a
// replacement. If the prefix ends at an aborted token, its error is returned
// alongside the ready tokens before it.
func (w *window) ReadyPrefix() ([]*token.Token, error) {
	for i, tok := range w.tokens {
		if !tok.Settled() {
			return w.tokens[:i], nil
		}
		if err := tok.Err(); err != nil {
			return w.tokens[:i], err
		}
	}
	return w.tokens, nil
}

// Drop removes the first n tokens.
func (w *window) Drop(n int) {
	if n <= 0 {
		return
	}
	remaining := copy(w.tokens, w.tokens[n:])

	// Nil out vacated slots so flushed tokens can be collected.
	for i := remaining; i < len(w.tokens); i++ {
		w.tokens[i] = nil
	}
	w.tokens = w.tokens[:remaining]
}
