package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/deplag/internal/provider"
	"github.com/roach88/deplag/internal/token"
)

// ScriptedProvider is an in-memory provider.Provider with controllable
// latency, transient failures and blocking, for exercising completion order.
//
// All configuration is keyed by folded word. Latency, failures and blocking
// apply to PartsOfSpeech, the first call of every lookup; Candidates answers
// immediately.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedProvider struct {
	mu       sync.Mutex
	tags     map[string][]string
	cands    map[string][]provider.Candidate
	delays   map[string]time.Duration
	failures map[string]int
	gates    map[string]chan struct{}
	calls    map[string]int
	started  chan string
}

// NewScriptedProvider creates an empty provider. Unknown words have no tags
// and no candidates.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		tags:     make(map[string][]string),
		cands:    make(map[string][]provider.Candidate),
		delays:   make(map[string]time.Duration),
		failures: make(map[string]int),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
		started:  make(chan string, 1024),
	}
}

// Synonym maps word to replacement with a shared tag, so the replacement
// always survives tag filtering.
func (p *ScriptedProvider) Synonym(word, replacement string) *ScriptedProvider {
	return p.Entry(word, []string{"syn"}, provider.Candidate{Word: replacement, Tags: []string{"syn"}})
}

// Entry sets the tags and ordered candidates of word.
func (p *ScriptedProvider) Entry(word string, tags []string, cands ...provider.Candidate) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := token.Fold(word)
	p.tags[key] = tags
	p.cands[key] = cands
	return p
}

// Delay makes every lookup of word take d.
func (p *ScriptedProvider) Delay(word string, d time.Duration) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays[token.Fold(word)] = d
	return p
}

// FailTimes makes the next n lookups of word fail with a transient error.
func (p *ScriptedProvider) FailTimes(word string, n int) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[token.Fold(word)] = n
	return p
}

// Block makes lookups of word wait until the returned release func is called.
func (p *ScriptedProvider) Block(word string) (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gates[token.Fold(word)] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started delivers the folded word of every lookup as it begins.
func (p *ScriptedProvider) Started() <-chan string {
	return p.started
}

// Calls returns how many lookups of word have started.
func (p *ScriptedProvider) Calls(word string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[token.Fold(word)]
}

// TotalCalls returns the number of lookups across all words.
func (p *ScriptedProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// PartsOfSpeech implements provider.Provider.
func (p *ScriptedProvider) PartsOfSpeech(ctx context.Context, word string) ([]string, error) {
	key := token.Fold(word)

	p.mu.Lock()
	p.calls[key]++
	delay := p.delays[key]
	gate := p.gates[key]
	fail := p.failures[key] > 0
	if fail {
		p.failures[key]--
	}
	tags := p.tags[key]
	p.mu.Unlock()

	select {
	case p.started <- key:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, &provider.TransientError{Op: "parts_of_speech", Word: word, Status: 503}
	}
	return tags, nil
}

// Candidates implements provider.Provider.
func (p *ScriptedProvider) Candidates(_ context.Context, word string) ([]provider.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cands[token.Fold(word)], nil
}

var _ provider.Provider = (*ScriptedProvider)(nil)
