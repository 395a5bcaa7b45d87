package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/deplag/internal/store"
	"github.com/roach88/deplag/internal/token"
)

// CacheOptions holds flags for the cache command.
type CacheOptions struct {
	*RootOptions
	Word string // optional - single word only
}

// CacheResult is the output of the cache command.
type CacheResult struct {
	Synonyms []store.Synonym `json:"synonyms"`
	Total    int             `json:"total"`
}

// NewCacheCommand creates the cache command.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "List learned synonyms",
		Long: `List the substitutions journaled in the store, in the order they were
learned. These seed the cache of every run that uses the same store.

Examples:
  deplag cache --db ./deplag.db
  deplag cache --db ./deplag.db --word quick --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Word, "word", "", "show a single word only")

	return cmd
}

func runCache(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	synonyms, err := st.LoadSynonyms(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load synonyms", err)
	}
	if opts.Word != "" {
		word := token.Fold(opts.Word)
		filtered := synonyms[:0]
		for _, syn := range synonyms {
			if syn.Word == word {
				filtered = append(filtered, syn)
			}
		}
		synonyms = filtered
	}

	return formatter.Success(CacheResult{Synonyms: synonyms, Total: len(synonyms)})
}

func (r CacheResult) writeText(w io.Writer, verbose bool) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No synonyms learned yet.")
		return
	}
	for _, syn := range r.Synonyms {
		if verbose {
			fmt.Fprintf(w, "%s -> %s  (run %s)\n", syn.Word, syn.Replacement, syn.RunID)
			continue
		}
		fmt.Fprintf(w, "%s -> %s\n", syn.Word, syn.Replacement)
	}
}

// openStore opens the store named by --db or the config file.
func openStore(opts *RootOptions) (*store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		return nil, NewExitError(ExitCommandError, "no store configured: pass --db or set db in the config file")
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
