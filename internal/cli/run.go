package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/deplag/internal/config"
	"github.com/roach88/deplag/internal/pipeline"
	"github.com/roach88/deplag/internal/provider"
	"github.com/roach88/deplag/internal/resolver"
	"github.com/roach88/deplag/internal/runner"
	"github.com/roach88/deplag/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	In      string
	Out     string
	InDir   string
	OutDir  string
	Window  int
	Lexicon string

	// Provider overrides the configured synonym provider (for testing).
	Provider provider.Provider

	// IDGenerator overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator runner.IDGenerator
}

// RunSummary is the command result.
type RunSummary struct {
	Runs      []*runner.Result `json:"runs"`
	CacheSize int              `json:"cache_size"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rewrite a file or directory with synonyms",
		Long: `Rewrite an input file into an output file, replacing words with synonyms.

If the output already exists it is treated as the partial result of an
earlier run: its substitutions seed the cache and processing resumes after
the last token it holds. With --in-dir every regular file of the directory
is processed and the output name is derived from the input name.

Exit codes:
  0 - All runs completed
  1 - A run failed or was interrupted
  2 - Command error (missing files, bad flags or config)

Examples:
  deplag run --in book.txt --out book.out.txt
  deplag run --in-dir ./chapters --out-dir ./rewritten --db ./deplag.db
  deplag run --in book.txt --out out.txt --lexicon ./lexicon.yaml --window 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeplag(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "input file")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output file (created if missing, resumed if present)")
	cmd.Flags().StringVar(&opts.InDir, "in-dir", "", "input directory")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "output directory")
	cmd.Flags().IntVar(&opts.Window, "window", 0, "window capacity (overrides config)")
	cmd.Flags().StringVar(&opts.Lexicon, "lexicon", "", "YAML lexicon to use instead of the configured provider")
	cmd.MarkFlagsRequiredTogether("in", "out")
	cmd.MarkFlagsRequiredTogether("in-dir", "out-dir")
	cmd.MarkFlagsMutuallyExclusive("in", "in-dir")
	cmd.MarkFlagsOneRequired("in", "in-dir")

	return cmd
}

func runDeplag(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Window < 0 {
		return NewExitError(ExitCommandError, "--window must be at least 1")
	}
	if opts.Window > 0 {
		cfg.Window = opts.Window
	}
	if opts.Lexicon != "" {
		cfg.Provider.Kind = config.ProviderLexicon
		cfg.Provider.Lexicon = opts.Lexicon
	}

	p := opts.Provider
	if p == nil {
		if p, err = newProvider(cfg.Provider); err != nil {
			return WrapExitError(ExitCommandError, "failed to create provider", err)
		}
	}

	runOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithCapacity(cfg.Window),
		runner.WithHistory(cfg.History),
		runner.WithProgress(logProgress(logger)),
		runner.WithResolverOptions(
			resolver.WithMinWordLength(cfg.MinWordLength),
			resolver.WithBackoffCeiling(cfg.Provider.BackoffCeiling),
			resolver.WithMaxAttempts(cfg.Provider.MaxAttempts),
		),
	}
	if opts.IDGenerator != nil {
		runOpts = append(runOpts, runner.WithIDGenerator(opts.IDGenerator))
	}
	if cfg.DB != "" {
		logger.Info("opening database", "path", cfg.DB)
		st, err := store.Open(cfg.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, runner.WithStore(st))
	}
	r := runner.New(p, runOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after in-order flush", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var results []*runner.Result
	if opts.InDir != "" {
		results, err = r.RunDir(ctx, opts.InDir, opts.OutDir)
	} else {
		var res *runner.Result
		res, err = r.Run(ctx, opts.In, opts.Out)
		if res != nil {
			results = append(results, res)
		}
	}
	if err != nil {
		exitErr := runExitError(err)
		_ = formatter.Error(ErrorCode(err), exitErr.Error(), nil)
		return exitErr
	}

	summary := RunSummary{Runs: results, CacheSize: r.Cache().Len()}
	if results == nil {
		summary.Runs = []*runner.Result{}
	}
	return formatter.Success(summary)
}

func (s RunSummary) writeText(w io.Writer, verbose bool) {
	for _, res := range s.Runs {
		fmt.Fprintf(w, "%s -> %s: resumed at %d, seeded %d, wrote %d tokens\n",
			res.Input, res.Output, res.ResumeOffset, res.Seeded, res.Stats.Flushed)
		if verbose {
			fmt.Fprintf(w, "  run %s: %d lookup(s), %d retry(s), %d loaded from store, %s\n",
				res.RunID, res.Lookups, res.Retries, res.Loaded, res.Stats.Elapsed)
		}
	}
	fmt.Fprintf(w, "%d run(s), %d cached substitution(s)\n", len(s.Runs), s.CacheSize)
}

// newProvider builds the configured synonym provider.
func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderLexicon:
		lex, err := provider.LoadLexicon(cfg.Lexicon)
		if err != nil {
			return nil, err
		}
		return lex, nil
	case config.ProviderDatamuse, "":
		return provider.NewDatamuse(
			provider.WithBaseURL(cfg.BaseURL),
			provider.WithMaxResults(cfg.MaxResults),
			provider.WithTimeout(cfg.Timeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

// logProgress reports scheduler progress at Info.
func logProgress(logger *slog.Logger) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		percent := 0
		if p.Capacity > 0 {
			percent = p.Flushed * 100 / p.Capacity
		}
		logger.Info("progress",
			"flushed", p.Flushed,
			"window_percent", percent,
			"total", p.Total,
			"pending", p.Pending,
			"avg_per_token", p.AvgPerToken,
			"elapsed", p.Elapsed,
			"cache_size", p.CacheSize,
		)
	}
}
