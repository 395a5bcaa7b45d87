package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/resolver"
	"github.com/roach88/deplag/internal/runner"
	"github.com/roach88/deplag/internal/store"
	"github.com/roach88/deplag/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: expectations and assertions hold.
	Pass bool `json:"pass"`

	// Output is the output file content after the run.
	Output string `json:"output"`

	ResumeOffset int64  `json:"resume_offset"`
	Seeded       int    `json:"seeded"`
	Flushed      int64  `json:"flushed"`
	RunStatus    string `json:"run_status,omitempty"`

	// ErrorCode is the code of the run error, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Cache is the final cache snapshot, sorted by word.
	Cache []cache.Entry `json:"cache"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Harness holds the per-scenario environment.
type Harness struct {
	dir      string
	store    *store.Store
	provider *testutil.ScriptedProvider
	runner   *runner.Runner
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory with its own store.
// Returns an error only when the environment cannot be set up; run errors
// are reported through Result.ErrorCode and checked against Expect.Error.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	input := filepath.Join(h.dir, "input.txt")
	output := filepath.Join(h.dir, "output.txt")
	if err := os.WriteFile(input, []byte(scenario.Input), 0644); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}
	if scenario.ExistingOutput != "" {
		if err := os.WriteFile(output, []byte(scenario.ExistingOutput), 0644); err != nil {
			return nil, fmt.Errorf("write existing output: %w", err)
		}
	}

	result := &Result{Pass: true}
	res, runErr := h.runner.Run(ctx, input, output)
	if res != nil {
		result.ResumeOffset = int64(res.ResumeOffset)
		result.Seeded = res.Seeded
		result.Flushed = res.Stats.Flushed
	}
	if runErr != nil {
		result.ErrorCode = errorCode(runErr)
	}

	data, err := os.ReadFile(output)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read output: %w", err)
	}
	result.Output = string(data)
	result.Cache = h.runner.Cache().Entries()

	run, err := h.store.ReadRun(ctx, scenario.Name)
	switch {
	case err == nil:
		result.RunStatus = string(run.Status)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("read run record: %w", err)
	}

	checkExpect(result, scenario.Expect, runErr)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.provider) {
		result.AddError("%s", msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	dir, err := os.MkdirTemp("", "deplag-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}
	h := &Harness{dir: dir}

	h.store, err = store.Open(filepath.Join(dir, "deplag.db"))
	if err != nil {
		h.close()
		return nil, fmt.Errorf("failed to create scenario store: %w", err)
	}
	for word, repl := range scenario.Learned {
		if _, _, err := h.store.PutSynonym(ctx, "learned", word, repl); err != nil {
			h.close()
			return nil, fmt.Errorf("seed learned synonym %q: %w", word, err)
		}
	}

	h.provider = testutil.NewScriptedProvider()
	for word, repl := range scenario.Synonyms {
		h.provider.Synonym(word, repl)
	}
	for word, ms := range scenario.Delays {
		h.provider.Delay(word, time.Duration(ms)*time.Millisecond)
	}
	for word, n := range scenario.Failures {
		h.provider.FailTimes(word, n)
	}

	opts := []runner.Option{
		runner.WithStore(h.store),
		runner.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name)),
		runner.WithClock(testutil.NewStepClock(time.Millisecond).Now),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		runner.WithResolverOptions(resolver.WithBackoffCeiling(0)),
	}
	if scenario.Window > 0 {
		opts = append(opts, runner.WithCapacity(scenario.Window))
	}
	h.runner = runner.New(h.provider, opts...)
	return h, nil
}

func (h *Harness) close() {
	if h.store != nil {
		h.store.Close()
	}
	os.RemoveAll(h.dir)
}

// checkExpect compares the run against the scenario's expect clause.
func checkExpect(result *Result, want Expect, runErr error) {
	switch {
	case want.Error == "" && runErr != nil:
		result.AddError("run failed: %v", runErr)
	case want.Error != "" && result.ErrorCode != want.Error:
		result.AddError("error: expected %s, got %q", want.Error, result.ErrorCode)
	}
	if result.Output != want.Output {
		result.AddError("output mismatch:\n  expected: %q\n  actual:   %q", want.Output, result.Output)
	}
	if want.ResumeOffset != nil && *want.ResumeOffset != result.ResumeOffset {
		result.AddError("resume_offset: expected %d, got %d", *want.ResumeOffset, result.ResumeOffset)
	}
	if want.Seeded != nil && *want.Seeded != result.Seeded {
		result.AddError("seeded: expected %d, got %d", *want.Seeded, result.Seeded)
	}
}

func errorCode(err error) string {
	var ae *reconcile.AlignmentError
	switch {
	case errors.As(err, &ae):
		return string(ae.Code)
	case runner.IsSourceUnavailable(err):
		return "SOURCE_UNAVAILABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "INTERRUPTED"
	default:
		return "RUN_FAILED"
	}
}
