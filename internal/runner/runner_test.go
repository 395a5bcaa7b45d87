package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/resolver"
	"github.com/roach88/deplag/internal/store"
	"github.com/roach88/deplag/internal/testutil"
	"github.com/roach88/deplag/internal/token"
	"github.com/roach88/deplag/internal/tokenizer"
)

const foxText = "The quick fox runs.\nA lazy dog sleeps.\n"
const foxWant = "The speedy wolf sprints.\nA idle hound naps.\n"

func foxProvider() *testutil.ScriptedProvider {
	return testutil.NewScriptedProvider().
		Synonym("quick", "speedy").
		Synonym("fox", "wolf").
		Synonym("runs", "sprints").
		Synonym("lazy", "idle").
		Synonym("dog", "hound").
		Synonym("sleeps", "naps")
}

func newTestRunner(p *testutil.ScriptedProvider, opts ...Option) *Runner {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewFixedIDGenerator("test-run")),
		WithClock(testutil.NewStepClock(time.Millisecond).Now),
		WithCapacity(3),
		WithResolverOptions(resolver.WithBackoffCeiling(0)),
	}
	return New(p, append(base, opts...)...)
}

func writeInput(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_FreshOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, foxText)
	out := filepath.Join(dir, "output.txt")

	res, err := newTestRunner(foxProvider()).Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, foxWant, readFile(t, out))
	assert.Equal(t, "test-run", res.RunID)
	assert.Equal(t, token.Index(0), res.ResumeOffset)
	assert.Equal(t, int64(8), res.Stats.Flushed)
}

func TestRun_ResumesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, foxText)
	out := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(out, []byte("The speedy wolf sprints.\nA idle "), 0644))

	// A different mapping for quick proves the prefix is not reprocessed.
	p := foxProvider().Synonym("quick", "rapid")
	res, err := newTestRunner(p).Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, foxWant, readFile(t, out))
	assert.Equal(t, token.Index(6), res.ResumeOffset)
	assert.Equal(t, int64(2), res.Stats.Flushed)
	assert.Equal(t, 0, p.Calls("quick"))
	assert.Equal(t, 0, p.Calls("fox"), "seeded from the existing output")
}

func TestRun_ResumeIdempotence(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, foxText)
	out := filepath.Join(dir, "output.txt")
	r := newTestRunner(foxProvider())

	_, err := r.Run(context.Background(), in, out)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), in, out)
	require.NoError(t, err)

	total, err := tokenizer.CountFile(in)
	require.NoError(t, err)
	assert.Equal(t, total, res.ResumeOffset)
	assert.Equal(t, int64(0), res.Stats.Flushed)
	assert.Equal(t, foxWant, readFile(t, out))
}

func TestRun_InterruptedThenResumed(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, foxText)
	out := filepath.Join(dir, "output.txt")

	db, err := store.Open(filepath.Join(dir, "deplag.db"))
	require.NoError(t, err)
	defer db.Close()

	p := foxProvider()
	release := p.Block("runs")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := newTestRunner(p, WithStore(db)).Run(ctx, in, out)
		done <- err
	}()

	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(out)
		return string(data) == "The speedy wolf "
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	run, err := db.ReadRun(context.Background(), "test-run")
	require.NoError(t, err)
	assert.Equal(t, store.RunInterrupted, run.Status)
	assert.Equal(t, int64(3), run.Flushed)

	release()
	res, err := newTestRunner(foxProvider(), WithStore(db), WithIDGenerator(testutil.NewFixedIDGenerator("second"))).
		Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, token.Index(3), res.ResumeOffset)
	assert.Equal(t, foxWant, readFile(t, out))
}

func TestRun_StoreJournalAndSeed(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, foxText)
	db, err := store.Open(filepath.Join(dir, "deplag.db"))
	require.NoError(t, err)
	defer db.Close()

	_, _, err = db.PutSynonym(context.Background(), "earlier", "quick", "rapid")
	require.NoError(t, err)

	p := foxProvider()
	res, err := newTestRunner(p, WithStore(db)).Run(context.Background(), in, filepath.Join(dir, "out.txt"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 0, p.Calls("quick"), "learned synonyms are not looked up again")
	assert.Equal(t, "The rapid wolf sprints.\nA idle hound naps.\n", readFile(t, filepath.Join(dir, "out.txt")))

	synonyms, err := db.LoadSynonyms(context.Background())
	require.NoError(t, err)
	learned := map[string]string{}
	for _, syn := range synonyms {
		learned[syn.Word] = syn.Replacement
	}
	assert.Equal(t, "rapid", learned["quick"])
	assert.Equal(t, "wolf", learned["fox"])
	assert.Equal(t, "naps", learned["sleeps"])

	runs, err := db.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunCompleted, runs[0].Status)
	assert.Equal(t, int64(8), runs[0].Flushed)
	assert.Greater(t, runs[0].FinishedAt, runs[0].StartedAt)
}

func TestRun_OutputLongerThanInput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "one two\n")
	out := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(out, []byte(" one two\n"), 0644))

	_, err := newTestRunner(foxProvider()).Run(context.Background(), in, out)
	require.Error(t, err)

	var ae *reconcile.AlignmentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, reconcile.ErrCodeOutputLonger, ae.Code)
}

func TestRun_MisalignedOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "one two\n")
	out := filepath.Join(dir, "output.txt")
	require.NoError(t, os.WriteFile(out, []byte("one\n"), 0644))

	_, err := newTestRunner(foxProvider()).Run(context.Background(), in, out)
	assert.True(t, reconcile.IsAlignmentError(err))
	assert.Equal(t, "one\n", readFile(t, out), "no processing after an alignment failure")
}

func TestRun_SourceUnavailable(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(foxProvider())

	_, err := r.Run(context.Background(), filepath.Join(dir, "missing.txt"), filepath.Join(dir, "out.txt"))
	require.Error(t, err)
	assert.True(t, IsSourceUnavailable(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	in := writeInput(t, dir, foxText)
	_, err = r.Run(context.Background(), in, filepath.Join(dir, "no", "such", "out.txt"))
	require.Error(t, err)
	assert.True(t, IsSourceUnavailable(err))

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "output", se.Role)
}

func TestRunDir(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "QuickFox.txt"), []byte("The quick fox runs.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("A lazy dog.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, ".hidden"), []byte("skip me\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(inDir, "sub"), 0755))

	p := foxProvider()
	results, err := newTestRunner(p).RunDir(context.Background(), inDir, outDir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "The speedy wolf sprints.\n", readFile(t, filepath.Join(outDir, "SpeedyWolf.txt")))
	assert.Equal(t, "A idle hound.\n", readFile(t, filepath.Join(outDir, "notes.txt")))
	assert.Equal(t, 1, p.Calls("quick"), "the cache is shared by naming and every file")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunDir_MissingInputDir(t *testing.T) {
	_, err := newTestRunner(foxProvider()).RunDir(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.True(t, IsSourceUnavailable(err))
}

func TestSplitCamel(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"QuickFox", []string{"Quick", "Fox"}},
		{"quickFox", []string{"quick", "Fox"}},
		{"notes", []string{"notes"}},
		{"ABC", []string{"A", "B", "C"}},
		{"Chapter1Intro", []string{"Chapter1", "Intro"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCamel(tt.name))
		})
	}
}

func TestOutputName(t *testing.T) {
	r := newTestRunner(foxProvider())
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"/texts/QuickFox.txt", "SpeedyWolf.txt"},
		{"QuickFox.draft.md", "SpeedyWolf.txt"},
		{"notes", "notes.txt"},
		{"ATale", "ATale.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.OutputName(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.OutputName(ctx, ".hidden")
	assert.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.Compare(a, b) <= 0, "v7 IDs sort by creation time")
}
