// Package reconcile recovers state from a partial output left by an earlier
// run.
//
// Input and output are read line by line in lockstep. Words of each aligned
// line pair are compared positionally, and every pair whose words differ
// case-insensitively seeds the cache with the substitution the earlier run
// made. The resume offset is the token count of the output, measured with the
// same tokenizer the main run uses, so it is a token.Index into the input.
//
// Lines are the alignment unit because substitution never adds or removes
// whitespace. The last output line may have been cut mid-word when a run was
// killed; in an unterminated final line a pair is trusted only when a later
// non-empty output word exists on that line.
package reconcile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/token"
	"github.com/roach88/deplag/internal/tokenizer"
)

// Result summarizes a reconciliation.
type Result struct {
	// ResumeOffset is the number of input tokens already present in the
	// output. The main run skips this many tokens.
	ResumeOffset token.Index `json:"resume_offset"`

	// Seeded is the number of cache entries inserted.
	Seeded int `json:"seeded"`

	// Lines is the number of output lines examined.
	Lines int `json:"lines"`
}

// Option configures Reconcile.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Reconcile aligns the output at outputPath against the input at inputPath,
// seeds c with the substitutions found, and returns the resume offset.
//
// Existing cache entries are never overwritten. Returns an *AlignmentError
// when the files cannot be aligned.
func Reconcile(ctx context.Context, inputPath, outputPath string, c *cache.Cache, opts ...Option) (Result, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var res Result

	inFile, err := os.Open(inputPath)
	if err != nil {
		return res, fmt.Errorf("open input: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Open(outputPath)
	if err != nil {
		return res, fmt.Errorf("open output: %w", err)
	}
	defer outFile.Close()

	in := bufio.NewReader(inFile)
	out := bufio.NewReader(outFile)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		outLine, outErr := out.ReadString('\n')
		if outErr != nil && !errors.Is(outErr, io.EOF) {
			return res, fmt.Errorf("read output: %w", outErr)
		}
		if outLine == "" {
			break
		}
		res.Lines++

		inLine, inErr := in.ReadString('\n')
		if inErr != nil && !errors.Is(inErr, io.EOF) {
			return res, fmt.Errorf("read input: %w", inErr)
		}
		if inLine == "" {
			return res, &AlignmentError{
				Code:    ErrCodeExtraOutputLine,
				Message: "output has a line with no matching input line",
				Line:    res.Lines,
			}
		}

		pairs, err := AlignLine(inLine, outLine, strings.HasSuffix(outLine, "\n"))
		if err != nil {
			var ae *AlignmentError
			if errors.As(err, &ae) {
				ae.Line = res.Lines
			}
			return res, err
		}
		for _, p := range pairs {
			if _, inserted := c.Insert(p.Word, p.Replacement); inserted {
				res.Seeded++
				o.logger.Debug("seeded substitution from output",
					"word", token.Fold(p.Word), "replacement", token.Fold(p.Replacement), "line", res.Lines)
			}
		}

		if errors.Is(outErr, io.EOF) {
			break
		}
	}

	n, err := tokenizer.CountFile(outputPath)
	if err != nil {
		return res, fmt.Errorf("count output tokens: %w", err)
	}
	res.ResumeOffset = n

	o.logger.Info("reconciled existing output",
		"output", outputPath, "resume_offset", res.ResumeOffset, "seeded", res.Seeded, "lines", res.Lines)
	return res, nil
}

// AlignLine returns the trusted substitutions of one aligned line pair.
//
// Words are split on whitespace and trimmed with the punctuation alphabet of
// both lines together. Pairs that differ only in case, and pairs where either
// side has no word left after trimming, are not substitutions. When complete
// is false the output line was cut short: the word count may be lower than
// the input's, and the last non-empty output word and everything after it
// are untrusted.
func AlignLine(inLine, outLine string, complete bool) ([]cache.Entry, error) {
	inWords := strings.Fields(inLine)
	outWords := strings.Fields(outLine)

	if len(outWords) > len(inWords) || (complete && len(outWords) != len(inWords)) {
		return nil, &AlignmentError{
			Code:        ErrCodeWordCountMismatch,
			Message:     fmt.Sprintf("input line has %d words, output line has %d", len(inWords), len(outWords)),
			InputWords:  len(inWords),
			OutputWords: len(outWords),
		}
	}

	alphabet := token.PunctuationAlphabet(inLine + outLine)

	trusted := len(outWords)
	if !complete {
		trusted = 0
		for i := len(outWords) - 1; i >= 0; i-- {
			if strings.Trim(outWords[i], alphabet) != "" {
				trusted = i
				break
			}
		}
	}

	var pairs []cache.Entry
	for i := 0; i < trusted; i++ {
		word := strings.Trim(inWords[i], alphabet)
		repl := strings.Trim(outWords[i], alphabet)
		if word == "" || repl == "" {
			continue
		}
		if token.Fold(word) == token.Fold(repl) {
			continue
		}
		pairs = append(pairs, cache.Entry{Word: word, Replacement: repl})
	}
	return pairs, nil
}
