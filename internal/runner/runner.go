// Package runner drives pipeline runs over files.
//
// A run:
//  1. Creates the output if missing.
//  2. Reconciles the existing output against the input, seeding the cache
//     and computing the resume offset.
//  3. Seeds the cache from the store's learned synonyms, if a store is set.
//  4. Skips the input tokenizer to the resume offset.
//  5. Runs the scheduler, appending to the output.
//
// The cache belongs to the Runner and is shared by every run it performs,
// so directory mode reuses substitutions across files.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/pipeline"
	"github.com/roach88/deplag/internal/provider"
	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/resolver"
	"github.com/roach88/deplag/internal/store"
	"github.com/roach88/deplag/internal/token"
	"github.com/roach88/deplag/internal/tokenizer"
)

// Result describes one completed or interrupted run.
type Result struct {
	RunID        string         `json:"run_id"`
	Input        string         `json:"input"`
	Output       string         `json:"output"`
	ResumeOffset token.Index    `json:"resume_offset"`
	Seeded       int            `json:"seeded"`
	Loaded       int            `json:"loaded"`
	Lookups      int64          `json:"lookups"`
	Retries      int64          `json:"retries"`
	Stats        pipeline.Stats `json:"stats"`
}

// Runner performs runs with a shared provider and cache.
type Runner struct {
	provider     provider.Provider
	cache        *cache.Cache
	store        *store.Store
	ids          IDGenerator
	now          func() time.Time
	logger       *slog.Logger
	capacity     int
	history      int
	progress     pipeline.ProgressFunc
	resolverOpts []resolver.Option
	loaded       bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore journals learned synonyms and records runs in s. Its synonyms
// seed the cache before the first run.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithIDGenerator sets the run ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithClock replaces time.Now for run timestamps and progress timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithCapacity sets the scheduler window capacity. Default: 60.
func WithCapacity(n int) Option {
	return func(r *Runner) { r.capacity = n }
}

// WithHistory sets the progress meter history. Default: 60.
func WithHistory(n int) Option {
	return func(r *Runner) { r.history = n }
}

// WithProgress installs a progress callback for every run.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithResolverOptions passes options to every resolver the Runner builds.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(r *Runner) { r.resolverOpts = append(r.resolverOpts, opts...) }
}

// New creates a Runner resolving through p.
func New(p provider.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider: p,
		cache:    cache.New(),
		ids:      UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
		capacity: pipeline.DefaultCapacity,
		history:  pipeline.DefaultHistory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the Runner's cache.
func (r *Runner) Cache() *cache.Cache {
	return r.cache
}

func (r *Runner) newResolver(j resolver.Journal) *resolver.Resolver {
	opts := append([]resolver.Option{resolver.WithLogger(r.logger)}, r.resolverOpts...)
	if j != nil {
		opts = append(opts, resolver.WithJournal(j))
	}
	return resolver.New(r.provider, r.cache, opts...)
}

// Run processes input into output, resuming from any partial output.
//
// Returns a *SourceError if either file cannot be opened, a
// *reconcile.AlignmentError if the existing output does not match the input,
// and ctx.Err() if the run is cancelled. The Result is non-nil whenever
// processing started.
func (r *Runner) Run(ctx context.Context, input, output string) (*Result, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if err := ensureOutput(output); err != nil {
		return nil, err
	}

	runID := r.ids.Generate()
	logger := r.logger.With("run_id", runID)
	result := &Result{RunID: runID, Input: input, Output: output}

	rec, err := reconcile.Reconcile(ctx, input, output, r.cache, reconcile.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", output, err)
	}
	result.ResumeOffset = rec.ResumeOffset
	result.Seeded = rec.Seeded

	var journal resolver.Journal
	if r.store != nil {
		if result.Loaded, err = r.loadSynonyms(ctx); err != nil {
			return nil, err
		}
		journal = r.store.Journal(runID)
	}

	src, err := tokenizer.Open(input)
	if err != nil {
		return nil, &SourceError{Role: "input", Path: input, Err: err}
	}
	defer src.Close()

	skipped, err := src.Skip(rec.ResumeOffset)
	if err != nil {
		return nil, fmt.Errorf("skip to resume offset: %w", err)
	}
	if skipped < rec.ResumeOffset {
		return nil, &reconcile.AlignmentError{
			Code:    reconcile.ErrCodeOutputLonger,
			Message: fmt.Sprintf("output holds %d tokens but input has only %d", rec.ResumeOffset, skipped),
		}
	}

	if r.store != nil {
		err := r.store.BeginRun(ctx, store.Run{
			ID:           runID,
			Input:        input,
			Output:       output,
			Capacity:     r.capacity,
			ResumeOffset: int64(rec.ResumeOffset),
			Seeded:       rec.Seeded,
			StartedAt:    r.now().UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("starting run",
		"input", input, "output", output, "resume_offset", rec.ResumeOffset, "capacity", r.capacity)

	rsv := r.newResolver(journal)
	sched := pipeline.New(src, rsv, pipeline.NewFileSink(output),
		pipeline.WithCapacity(r.capacity),
		pipeline.WithHistory(r.history),
		pipeline.WithClock(r.now),
		pipeline.WithCacheSize(r.cache.Len),
		pipeline.WithProgress(r.progress),
		pipeline.WithLogger(logger),
	)
	result.Stats, err = sched.Run(ctx)
	result.Lookups = rsv.Lookups()
	result.Retries = rsv.Retries()

	r.finish(ctx, logger, result, err)
	if err != nil {
		return result, err
	}
	logger.Info("run complete",
		"output", output, "flushed", result.Stats.Flushed, "lookups", result.Lookups, "cache_size", r.cache.Len())
	return result, nil
}

// loadSynonyms seeds the cache from the store once per Runner.
func (r *Runner) loadSynonyms(ctx context.Context) (int, error) {
	if r.loaded {
		return 0, nil
	}
	synonyms, err := r.store.LoadSynonyms(ctx)
	if err != nil {
		return 0, fmt.Errorf("load learned synonyms: %w", err)
	}
	n := 0
	for _, syn := range synonyms {
		if _, inserted := r.cache.Insert(syn.Word, syn.Replacement); inserted {
			n++
		}
	}
	r.loaded = true
	r.logger.Debug("loaded learned synonyms", "count", n)
	return n, nil
}

// finish records the run outcome. Store failures are logged; the run's own
// error takes precedence.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, res *Result, runErr error) {
	if r.store == nil {
		return
	}
	status := store.RunCompleted
	msg := ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = store.RunInterrupted
		msg = runErr.Error()
	default:
		status = store.RunFailed
		msg = runErr.Error()
	}

	err := r.store.FinishRun(context.WithoutCancel(ctx), res.RunID, status, res.Stats.Flushed, msg, r.now().UnixMilli())
	if err != nil {
		logger.Error("failed to record run outcome", "status", status, "error", err)
	}
}

// RunDir processes every regular, non-hidden file in inDir in name order,
// writing each to outDir under its derived OutputName. Stops at the first
// failing run and returns the results so far.
func (r *Runner) RunDir(ctx context.Context, inDir, outDir string) ([]*Result, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, &SourceError{Role: "input", Path: inDir, Err: err}
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, &SourceError{Role: "output", Path: outDir, Err: err}
	}

	var results []*Result
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		input := filepath.Join(inDir, entry.Name())

		name, err := r.OutputName(ctx, input)
		if err != nil {
			return results, err
		}
		res, err := r.Run(ctx, input, filepath.Join(outDir, name))
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return results, nil
}

func checkInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &SourceError{Role: "input", Path: path, Err: err}
	}
	f.Close()
	return nil
}

// ensureOutput creates an empty output if none exists and checks that it
// can be appended to.
func ensureOutput(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &SourceError{Role: "output", Path: path, Err: err}
	}
	return f.Close()
}
