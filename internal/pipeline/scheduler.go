// Package pipeline runs the ordered substitution pipeline.
//
// The Scheduler pulls tokens from a Source into a bounded window, resolves
// each on its own goroutine, and flushes the longest completed prefix of the
// window to a Sink. Output order is input order no matter which resolution
// finishes first. The cost is head-of-line blocking: a slow resolution holds
// back every later token in the window until it completes.
//
// States:
//
//	FILLING   pull tokens and dispatch resolutions until the window is full
//	          or the source is exhausted
//	FLUSHING  write the completed prefix of the window
//	DRAINING  source exhausted; wait for and flush everything left
//
// Each iteration flushes, then fills. When an iteration flushes nothing the
// Scheduler waits for the window head to settle.
//
// Cancelling the context stops the run. Tokens that had not been flushed are
// discarded and the output remains a clean prefix of the full result.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/deplag/internal/token"
)

// DefaultCapacity is the default window capacity.
const DefaultCapacity = 60

// Source yields tokens in strictly increasing Index order and io.EOF once
// exhausted. Implemented by tokenizer.Tokenizer.
type Source interface {
	Next() (*token.Token, error)
}

// Resolver maps a core word to its replacement. Implemented by
// resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, word string) (string, error)
}

// State is a phase of the scheduler state machine.
type State int

const (
	StateFilling State = iota + 1
	StateFlushing
	StateDraining
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFilling:
		return "FILLING"
	case StateFlushing:
		return "FLUSHING"
	case StateDraining:
		return "DRAINING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats summarizes a finished or interrupted run.
type Stats struct {
	// Dispatched is the number of tokens pulled from the source.
	Dispatched int64 `json:"dispatched"`

	// Flushed is the number of tokens written to the sink.
	Flushed int64 `json:"flushed"`

	// Flushes is the number of Sink.Append calls.
	Flushes int64 `json:"flushes"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed"`
}

// Scheduler drives one pipeline run. A Scheduler is single-use.
type Scheduler struct {
	source    Source
	resolver  Resolver
	sink      Sink
	capacity  int
	history   int
	now       func() time.Time
	progress  ProgressFunc
	cacheSize func() int
	logger    *slog.Logger
	state     State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCapacity sets the window capacity. Values below 1 are treated as 1.
// Default: 60.
func WithCapacity(n int) Option {
	return func(s *Scheduler) { s.capacity = n }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// WithHistory sets how many flushes the progress average covers.
// Default: 60.
func WithHistory(n int) Option {
	return func(s *Scheduler) { s.history = n }
}

// WithClock replaces time.Now for progress timing.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithCacheSize reports fn() as Progress.CacheSize.
func WithCacheSize(fn func() int) Option {
	return func(s *Scheduler) { s.cacheSize = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler reading src, resolving through r and writing to
// sink.
func New(src Source, r Resolver, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   src,
		resolver: r,
		sink:     sink,
		capacity: DefaultCapacity,
		history:  DefaultHistory,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.capacity < 1 {
		s.capacity = 1
	}
	return s
}

// State returns the current phase. Only meaningful from a ProgressFunc or
// after Run returns.
func (s *Scheduler) State() State {
	return s.state
}

// Run processes the source to exhaustion.
//
// Returns ctx.Err() if the context is cancelled, a wrapped error if the
// source or sink fails, and nil once every token has been flushed.
// In-flight resolutions are cancelled and awaited before Run returns.
func (s *Scheduler) Run(ctx context.Context) (Stats, error) {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		Scheduler: s,
		ctx:       ctx,
		wg:        &wg,
		window:    newWindow(s.capacity),
		meter:     NewMeter(s.history, s.now),
	}

	err := r.loop()
	r.stats.Elapsed = r.meter.Elapsed()
	if err != nil {
		s.logger.Debug("pipeline stopped", "state", s.state, "flushed", r.stats.Flushed, "error", err)
		return r.stats, err
	}
	s.logger.Debug("pipeline finished", "flushed", r.stats.Flushed, "flushes", r.stats.Flushes)
	return r.stats, nil
}

// run holds the per-Run state.
type run struct {
	*Scheduler
	ctx    context.Context
	wg     *sync.WaitGroup
	window *window
	meter  *Meter
	stats  Stats
}

func (r *run) loop() error {
	for {
		r.state = StateFlushing
		n, err := r.flush()
		if err != nil {
			return err
		}

		r.state = StateFilling
		exhausted, err := r.fill()
		if err != nil {
			return err
		}
		if exhausted {
			return r.drain()
		}

		if n == 0 {
			if err := r.awaitHead(); err != nil {
				return err
			}
		}
	}
}

// fill tops the window up to capacity. Reports whether the source is
// exhausted.
func (r *run) fill() (bool, error) {
	for !r.window.Full() {
		tok, err := r.source.Next()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("read token %d: %w", r.stats.Dispatched, err)
		}
		r.dispatch(tok)
		r.window.Push(tok)
		r.stats.Dispatched++
	}
	return false, nil
}

// dispatch starts tok's resolution. Tokens without a core word settle at
// once.
func (r *run) dispatch(tok *token.Token) {
	if tok.Core == "" {
		tok.Complete("")
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		replacement, err := r.resolver.Resolve(r.ctx, tok.Core)
		if err != nil {
			tok.Abort(err)
			return
		}
		tok.Complete(replacement)
	}()
}

// flush writes the completed prefix of the window in one Append.
func (r *run) flush() (int, error) {
	ready, abortErr := r.window.ReadyPrefix()
	if len(ready) > 0 {
		var buf bytes.Buffer
		for _, tok := range ready {
			buf.WriteString(tok.Format())
		}
		if err := r.sink.Append(buf.Bytes()); err != nil {
			return 0, fmt.Errorf("flush tokens %d..%d: %w", ready[0].Index, ready[len(ready)-1].Index, err)
		}

		n := len(ready)
		r.window.Drop(n)
		r.stats.Flushed += int64(n)
		r.stats.Flushes++
		r.report(n)
	}
	if abortErr != nil {
		return len(ready), abortErr
	}
	return len(ready), nil
}

func (r *run) report(n int) {
	elapsed, avg := r.meter.Observe(n)
	if r.progress == nil {
		return
	}
	p := Progress{
		Flushed:     n,
		Total:       r.stats.Flushed,
		Pending:     r.window.Len(),
		Capacity:    r.capacity,
		Elapsed:     elapsed,
		AvgPerToken: avg,
	}
	if r.cacheSize != nil {
		p.CacheSize = r.cacheSize()
	}
	r.progress(p)
}

// awaitHead blocks until the window head settles or the context ends.
func (r *run) awaitHead() error {
	head := r.window.Head()
	if head == nil {
		return nil
	}
	select {
	case <-head.Done():
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// drain waits for every remaining token and flushes the window empty.
func (r *run) drain() error {
	r.state = StateDraining
	r.logger.Debug("source exhausted, draining window", "pending", r.window.Len())
	for r.window.Len() > 0 {
		if err := r.awaitHead(); err != nil {
			return err
		}
		if _, err := r.flush(); err != nil {
			return err
		}
	}
	return nil
}
