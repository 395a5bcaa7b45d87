package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by the
// configured step, so elapsed times measured between two calls are exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at the Unix epoch that advances by
// step on every reading.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: time.Unix(0, 0).UTC(), step: step}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d without a reading.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
