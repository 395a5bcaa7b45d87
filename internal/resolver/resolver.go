// Package resolver turns a core word into its replacement.
//
// Resolution order:
//  1. Words shorter than the minimum length pass through unchanged.
//  2. A cached replacement is returned as is.
//  3. Otherwise the provider is asked for the word's tags and its candidates;
//     the first candidate sharing a tag with the word wins, and the word
//     itself is the fallback.
//  4. The choice is inserted into the cache if absent and the stored value is
//     returned, so racing resolutions of the same word converge.
//
// Provider failures are retried after a randomized backoff and are never
// surfaced. A resolution ends without a value only when its context is
// cancelled.
package resolver

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/provider"
	"github.com/roach88/deplag/internal/token"
)

// Defaults.
const (
	DefaultMinWordLength  = 3
	DefaultBackoffCeiling = 400 * time.Millisecond
)

// Journal durably records newly learned substitutions.
// Implemented by store.Store.
type Journal interface {
	RecordSynonym(ctx context.Context, word, replacement string) error
}

// Resolver resolves core words through a cache and a provider.
//
// Thread-safety: Resolve is safe for concurrent use; one Resolver serves
// every in-flight token of a run.
type Resolver struct {
	provider       provider.Provider
	cache          *cache.Cache
	journal        Journal
	logger         *slog.Logger
	minWordLength  int
	backoffCeiling time.Duration
	maxAttempts    int
	sleep          func(ctx context.Context, d time.Duration) error

	lookups atomic.Int64
	retries atomic.Int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithJournal records every newly inserted cache entry in j.
func WithJournal(j Journal) Option {
	return func(r *Resolver) { r.journal = j }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMinWordLength sets the passthrough threshold in characters.
// Default: 3.
func WithMinWordLength(n int) Option {
	return func(r *Resolver) { r.minWordLength = n }
}

// WithBackoffCeiling bounds the randomized delay before a retry.
// Default: 400ms. Zero retries immediately.
func WithBackoffCeiling(d time.Duration) Option {
	return func(r *Resolver) { r.backoffCeiling = d }
}

// WithMaxAttempts bounds provider attempts per call. Zero (the default)
// retries forever. When the bound is hit the word falls back to itself and
// is not cached.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) { r.maxAttempts = n }
}

// New creates a Resolver over p and c.
func New(p provider.Provider, c *cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		provider:       p,
		cache:          c,
		logger:         slog.Default(),
		minWordLength:  DefaultMinWordLength,
		backoffCeiling: DefaultBackoffCeiling,
		sleep:          sleepWithCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the resolver reads and writes.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// Lookups returns how many resolutions went to the provider.
func (r *Resolver) Lookups() int64 {
	return r.lookups.Load()
}

// Retries returns how many provider calls were retried.
func (r *Resolver) Retries() int64 {
	return r.retries.Load()
}

// Resolve returns the replacement for word in folded form, or word itself
// when it is below the minimum length.
func (r *Resolver) Resolve(ctx context.Context, word string) (string, error) {
	if utf8.RuneCountInString(word) < r.minWordLength {
		return word, nil
	}
	if v, ok := r.cache.Get(word); ok {
		return v, nil
	}

	r.lookups.Add(1)
	choice, ok, err := r.lookup(ctx, word)
	if err != nil {
		return "", err
	}
	if !ok {
		return token.Fold(word), nil
	}

	stored, inserted := r.cache.Insert(word, choice)
	if inserted {
		r.logger.Debug("learned substitution", "word", token.Fold(word), "replacement", stored)
		if r.journal != nil {
			if err := r.journal.RecordSynonym(ctx, token.Fold(word), stored); err != nil {
				r.logger.Error("failed to journal substitution", "word", token.Fold(word), "error", err)
			}
		}
	}
	return stored, nil
}

// lookup queries the provider. ok is false when MaxAttempts ran out.
func (r *Resolver) lookup(ctx context.Context, word string) (choice string, ok bool, err error) {
	tags, ok, err := withRetry(ctx, r, "parts_of_speech", word, func() ([]string, error) {
		return r.provider.PartsOfSpeech(ctx, word)
	})
	if err != nil || !ok {
		return "", ok, err
	}
	cands, ok, err := withRetry(ctx, r, "candidates", word, func() ([]provider.Candidate, error) {
		return r.provider.Candidates(ctx, word)
	})
	if err != nil || !ok {
		return "", ok, err
	}
	return Choose(word, tags, cands), true, nil
}

// withRetry calls fn until it succeeds, the context ends, or the attempt
// bound is reached.
func withRetry[T any](ctx context.Context, r *Resolver, op, word string, fn func() (T, error)) (T, bool, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, true, nil
		}
		if ctx.Err() != nil {
			return zero, false, ctx.Err()
		}
		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			r.logger.Warn("provider attempts exhausted, keeping original word",
				"op", op, "word", word, "attempts", attempt, "error", err)
			return zero, false, nil
		}

		delay := r.backoff()
		r.retries.Add(1)
		r.logger.Warn("provider call failed, retrying",
			"op", op, "word", word, "attempt", attempt, "delay", delay, "transient", provider.IsTransient(err), "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return zero, false, err
		}
	}
}

// backoff returns a random delay in [0, ceiling).
func (r *Resolver) backoff() time.Duration {
	if r.backoffCeiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(r.backoffCeiling)))
}

// Choose picks the replacement for word: the first candidate sharing a tag
// with word, reduced to its last word when it is a phrase. Falls back to
// word when no candidate qualifies.
func Choose(word string, tags []string, cands []provider.Candidate) string {
	if len(cands) == 0 || len(tags) == 0 {
		return word
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	for _, c := range cands {
		for _, t := range c.Tags {
			if !want[t] {
				continue
			}
			fields := strings.Fields(c.Word)
			if len(fields) == 0 {
				break
			}
			return fields[len(fields)-1]
		}
	}
	return word
}

// sleepWithCtx sleeps for d or until ctx is done.
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
