package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/deplag/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunsResult is the output of the runs command.
type RunsResult struct {
	Runs  []store.Run `json:"runs"`
	Total int         `json:"total"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in the store, newest first.

A run that shows "running" was killed without recording its outcome. Rerun
it with the same input and output to resume.

Examples:
  deplag runs --db ./deplag.db
  deplag runs --db ./deplag.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to show (0 for all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	return formatter.Success(RunsResult{Runs: runs, Total: len(runs)})
}

func (r RunsResult) writeText(w io.Writer, verbose bool) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%s  %-11s  %s -> %s  resumed at %d, wrote %d\n",
			run.ID, run.Status, run.Input, run.Output, run.ResumeOffset, run.Flushed)
		if verbose {
			fmt.Fprintf(w, "  started %s\n", time.UnixMilli(run.StartedAt).UTC().Format(time.RFC3339))
		}
		if run.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", run.Error)
		}
	}
}
