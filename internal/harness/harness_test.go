package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deplag/internal/cache"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_DetectsOutputMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectation",
		Description: "expectation differs from the run",
		Input:       "The fox runs.\n",
		Synonyms:    map[string]string{"fox": "wolf"},
		Expect:      Expect{Output: "The fox runs.\n"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "output mismatch")
	assert.Equal(t, "The wolf runs.\n", result.Output)
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:           "unexpected_error",
		Description:    "a misaligned output without expect.error",
		Input:          "one two\n",
		ExistingOutput: "one\n",
		Expect:         Expect{Output: "one\n"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "WORD_COUNT_MISMATCH", result.ErrorCode)
	assert.Contains(t, result.Errors[0], "run failed")
}

func TestRun_WrongErrorCode(t *testing.T) {
	scenario := &Scenario{
		Name:           "wrong_error_code",
		Description:    "expects a different failure",
		Input:          "one two\n",
		ExistingOutput: "one two\nthree\n",
		Expect:         Expect{Output: "one two\nthree\n", Error: "WORD_COUNT_MISMATCH"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "EXTRA_OUTPUT_LINE", result.ErrorCode)
}

func TestSnapshot(t *testing.T) {
	result := &Result{
		Output:       "The wolf.\n",
		ResumeOffset: 1,
		Seeded:       2,
		Flushed:      3,
		RunStatus:    "completed",
		Cache:        []cache.Entry{{Word: "fox", Replacement: "wolf"}},
	}

	want := "scenario: s\nresume_offset: 1\nseeded: 2\nflushed: 3\nstatus: completed\n" +
		"--- output\nThe wolf.\n--- cache\nfox -> wolf\n"
	assert.Equal(t, want, string(Snapshot("s", result)))
}
