package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/reconcile"
	"github.com/roach88/deplag/internal/runner"
	"github.com/roach88/deplag/internal/tokenizer"
)

// ReconcileResult is the output of the reconcile command.
type ReconcileResult struct {
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	ResumeOffset int64         `json:"resume_offset"`
	InputTokens  int64         `json:"input_tokens"`
	Seeded       int           `json:"seeded"`
	Lines        int           `json:"lines"`
	Complete     bool          `json:"complete"`
	Entries      []cache.Entry `json:"entries,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <input> <output>",
		Short: "Show where a run would resume, without processing",
		Long: `Align an existing output against its input and report the resume offset
and the substitutions that would seed the cache. Nothing is written.

Exit codes:
  0 - The output aligns with the input
  1 - The output does not align (a run would refuse to start)
  2 - Command error (missing files, etc.)

Examples:
  deplag reconcile book.txt book.out.txt
  deplag reconcile book.txt book.out.txt --verbose --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runReconcile(opts *RootOptions, input, output string, cmd *cobra.Command) error {
	logger := newLogger(opts, cmd.ErrOrStderr())
	formatter := newFormatter(opts, cmd)

	for _, src := range []struct{ role, path string }{{"input", input}, {"output", output}} {
		if _, err := os.Stat(src.path); err != nil {
			srcErr := &runner.SourceError{Role: src.role, Path: src.path, Err: err}
			_ = formatter.Error(ErrorCode(srcErr), srcErr.Error(), nil)
			return WrapExitError(ExitCommandError, "cannot reconcile", srcErr)
		}
	}

	c := cache.New()
	rec, err := reconcile.Reconcile(cmd.Context(), input, output, c, reconcile.WithLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrorCode(err), err.Error(), alignmentDetails(err))
		if reconcile.IsAlignmentError(err) {
			return WrapExitError(ExitFailure, "output does not align with input", err)
		}
		return WrapExitError(ExitCommandError, "cannot reconcile", err)
	}

	total, err := tokenizer.CountFile(input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count input tokens", err)
	}

	result := ReconcileResult{
		Input:        input,
		Output:       output,
		ResumeOffset: int64(rec.ResumeOffset),
		InputTokens:  int64(total),
		Seeded:       rec.Seeded,
		Lines:        rec.Lines,
		Complete:     rec.ResumeOffset >= total,
	}
	if opts.Verbose {
		result.Entries = c.Entries()
	}

	return formatter.Success(result)
}

func (r ReconcileResult) writeText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "resume offset: %d of %d tokens\n", r.ResumeOffset, r.InputTokens)
	fmt.Fprintf(w, "seeded: %d substitution(s) from %d line(s)\n", r.Seeded, r.Lines)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "  %s -> %s\n", e.Word, e.Replacement)
	}
	if r.Complete {
		fmt.Fprintln(w, "output is complete")
	}
}

// alignmentDetails returns the line context of an alignment error, or nil.
func alignmentDetails(err error) any {
	var ae *reconcile.AlignmentError
	if !errors.As(err, &ae) {
		return nil
	}
	return map[string]int{
		"line":         ae.Line,
		"input_words":  ae.InputWords,
		"output_words": ae.OutputWords,
	}
}
