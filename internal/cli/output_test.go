package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deplag/internal/config"
	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/runner"
	"github.com/roach88/deplag/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("WORD_COUNT_MISMATCH", "output does not align", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "WORD_COUNT_MISMATCH", resp.Error.Code)
	assert.Equal(t, "output does not align", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]int{"line": 3, "input_words": 4, "output_words": 5}
	err := formatter.Error("WORD_COUNT_MISMATCH", "output does not align", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("1 run(s), 7 cached substitution(s)")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 run(s), 7 cached substitution(s)")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("WORD_COUNT_MISMATCH", "output does not align", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [WORD_COUNT_MISMATCH]")
	assert.Contains(t, buf.String(), "output does not align")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]int{"line": 3}
	err := formatter.Error("WORD_COUNT_MISMATCH", "output does not align", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [WORD_COUNT_MISMATCH]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextReport(t *testing.T) {
	result := CacheResult{
		Synonyms: []store.Synonym{{Word: "quick", Replacement: "speedy", RunID: "run-1"}},
		Total:    1,
	}

	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"plain", false, "quick -> speedy\n"},
		{"verbose", true, "quick -> speedy  (run run-1)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Success(result))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "SOURCE_UNAVAILABLE",
		Message: "input missing.txt not found",
		Details: []string{"missing.txt"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "SOURCE_UNAVAILABLE", decoded.Code)
	assert.Equal(t, "input missing.txt not found", decoded.Message)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		exit int
	}{
		{
			name: "alignment",
			err:  fmt.Errorf("reconcile out.txt: %w", &reconcile.AlignmentError{Code: reconcile.ErrCodeWordCountMismatch}),
			want: "WORD_COUNT_MISMATCH",
			exit: ExitFailure,
		},
		{
			name: "source unavailable",
			err:  &runner.SourceError{Role: "input", Path: "in.txt", Err: os.ErrNotExist},
			want: "SOURCE_UNAVAILABLE",
			exit: ExitCommandError,
		},
		{
			name: "config",
			err:  &config.Error{Code: config.ErrCodeInvalid, Message: "window: invalid value"},
			want: "CONFIG_INVALID",
			exit: ExitCommandError,
		},
		{
			name: "interrupted",
			err:  fmt.Errorf("flush tokens 3..5: %w", context.Canceled),
			want: ErrCodeInterrupted,
			exit: ExitFailure,
		},
		{
			name: "other",
			err:  errors.New("disk full"),
			want: ErrCodeRunFailed,
			exit: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))

			exitErr := runExitError(tt.err)
			assert.Equal(t, tt.exit, GetExitCode(exitErr))
			assert.ErrorIs(t, exitErr, tt.err)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "run failed", errors.New("x")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
