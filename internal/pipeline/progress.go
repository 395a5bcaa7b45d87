package pipeline

import (
	"time"
)

// DefaultHistory is the number of flushes averaged by the progress meter.
const DefaultHistory = 60

// Progress is reported after every flush that wrote at least one token.
type Progress struct {
	// Flushed is the number of tokens written by this flush.
	Flushed int

	// Total is the number of tokens written so far in this run.
	Total int64

	// Pending is the number of tokens still in the window.
	Pending int

	// Capacity is the window capacity.
	Capacity int

	// Elapsed is the time since the run started.
	Elapsed time.Duration

	// CacheSize is the number of cached substitutions, or 0 when the
	// scheduler was not given a cache size func.
	CacheSize int

	// AvgPerToken is the rolling average time per flushed token over the
	// meter's history.
	AvgPerToken time.Duration
}

// ProgressFunc receives progress reports. It runs on the scheduler
// goroutine and should return quickly.
type ProgressFunc func(Progress)

// Meter computes a rolling average of per-token flush latency.
//
// Each observation is the time since the previous observation divided by
// the number of tokens flushed. The average covers the last history
// observations.
//
// Not thread-safe: used by the Scheduler's Run goroutine only.
type Meter struct {
	now     func() time.Time
	start   time.Time
	last    time.Time
	samples []time.Duration
	next    int
	filled  bool
}

// NewMeter creates a meter averaging over history observations, starting
// its clock now.
func NewMeter(history int, now func() time.Time) *Meter {
	if history < 1 {
		history = 1
	}
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Meter{
		now:     now,
		start:   t,
		last:    t,
		samples: make([]time.Duration, history),
	}
}

// Observe records that n tokens were flushed and returns the elapsed time
// since the meter started and the updated rolling average.
func (m *Meter) Observe(n int) (elapsed, avg time.Duration) {
	t := m.now()
	if n > 0 {
		m.samples[m.next] = t.Sub(m.last) / time.Duration(n)
		m.next++
		if m.next == len(m.samples) {
			m.next = 0
			m.filled = true
		}
	}
	m.last = t
	return t.Sub(m.start), m.Average()
}

// Average returns the mean of the recorded observations.
func (m *Meter) Average() time.Duration {
	count := m.next
	if m.filled {
		count = len(m.samples)
	}
	if count == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range m.samples[:count] {
		sum += d
	}
	return sum / time.Duration(count)
}

// Elapsed returns the time since the meter started.
func (m *Meter) Elapsed() time.Duration {
	return m.now().Sub(m.start)
}
