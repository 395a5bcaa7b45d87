// Package cache provides the run-scoped synonym cache.
//
// Keys and values are stored in folded form (see token.Fold). A key, once
// written, is never overwritten: Insert is an atomic insert-if-absent that is
// linearizable per key, so racing resolutions of the same word all observe
// the single stored value. Operations on different keys never block each
// other.
//
// The cache is constructed by the run driver, seeded by the reconciler, and
// handed to the resolver. There is no package-level instance.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/deplag/internal/token"
)

// Cache maps folded words to folded replacements.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	m    sync.Map // string -> string
	size atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// Get returns the stored replacement for word, folding the lookup key.
func (c *Cache) Get(word string) (string, bool) {
	v, ok := c.m.Load(token.Fold(word))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Contains reports whether word has a stored replacement.
func (c *Cache) Contains(word string) bool {
	_, ok := c.m.Load(token.Fold(word))
	return ok
}

// Insert stores replacement for word unless word already has one.
//
// Returns the value that is stored after the call (either the new value or
// the earlier winner's) and whether this call wrote it.
func (c *Cache) Insert(word, replacement string) (stored string, inserted bool) {
	actual, loaded := c.m.LoadOrStore(token.Fold(word), token.Fold(replacement))
	if !loaded {
		c.size.Add(1)
	}
	return actual.(string), !loaded
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Entry is one cached substitution.
type Entry struct {
	Word        string `json:"word"`
	Replacement string `json:"replacement"`
}

// Entries returns a snapshot of the cache sorted by word.
func (c *Cache) Entries() []Entry {
	var out []Entry
	c.m.Range(func(k, v any) bool {
		out = append(out, Entry{Word: k.(string), Replacement: v.(string)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}
