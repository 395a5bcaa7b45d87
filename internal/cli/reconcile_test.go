package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePair(t *testing.T, input, output string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte(input), 0644))
	require.NoError(t, os.WriteFile(out, []byte(output), 0644))
	return in, out
}

func TestReconcileText(t *testing.T) {
	in, out := writePair(t, "The quick fox runs.\nA lazy dog.\n", "The speedy wolf sprints.\nA ")

	buf := &bytes.Buffer{}
	cmd := NewReconcileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{in, out})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "resume offset: 5 of 7 tokens")
	assert.Contains(t, buf.String(), "seeded: 3 substitution(s)")
	assert.Contains(t, buf.String(), "quick -> speedy")
	assert.NotContains(t, buf.String(), "output is complete")
}

func TestReconcileJSONComplete(t *testing.T) {
	in, out := writePair(t, "The quick fox.\n", "The speedy wolf.\n")

	buf := &bytes.Buffer{}
	cmd := NewReconcileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{in, out})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string          `json:"status"`
		Data   ReconcileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.ResumeOffset)
	assert.Equal(t, int64(3), resp.Data.InputTokens)
	assert.Equal(t, 2, resp.Data.Seeded)
	assert.True(t, resp.Data.Complete)
	assert.Empty(t, resp.Data.Entries, "entries are listed only when verbose")
}

func TestReconcileMisaligned(t *testing.T) {
	in, out := writePair(t, "one two\n", "one two\nthree\n")

	buf := &bytes.Buffer{}
	cmd := NewReconcileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{in, out})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "EXTRA_OUTPUT_LINE", resp.Error.Code)
}

func TestReconcileMissingOutput(t *testing.T) {
	in, _ := writePair(t, "one\n", "")

	cmd := NewReconcileCommand(&RootOptions{Format: "text"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{in, filepath.Join(t.TempDir(), "missing.txt")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [SOURCE_UNAVAILABLE]")
}

func TestInspectCommandsRequireStore(t *testing.T) {
	commands := map[string]func(*RootOptions) *cobra.Command{
		"cache": NewCacheCommand,
		"runs":  NewRunsCommand,
	}
	for name, newCmd := range commands {
		t.Run(name, func(t *testing.T) {
			cmd := newCmd(&RootOptions{Format: "text"})
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "no store configured")
		})
	}
}

func TestCacheEmptyStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "deplag.db")

	buf := &bytes.Buffer{}
	cmd := NewCacheCommand(&RootOptions{Format: "text", DB: db})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No synonyms learned yet.")
}
