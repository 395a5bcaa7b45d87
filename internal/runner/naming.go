package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/roach88/deplag/internal/token"
)

// OutputExt is the extension of generated output files.
const OutputExt = ".txt"

// SplitCamel splits a CamelCase name into words. A new word starts at every
// uppercase letter; a lowercase prefix is a word of its own. Non-letters
// stay with the word they follow.
func SplitCamel(name string) []string {
	var words []string
	start := 0
	for i, r := range name {
		if i > start && unicode.IsUpper(r) {
			words = append(words, name[start:i])
			start = i
		}
	}
	if start < len(name) {
		words = append(words, name[start:])
	}
	return words
}

// OutputName derives the output file name for inputPath: the base name up
// to its first dot, split into CamelCase words, each word resolved and
// case-adjusted, joined, with OutputExt appended.
//
// "QuickFox.txt" with quick→speedy and fox→wolf becomes "SpeedyWolf.txt".
func (r *Runner) OutputName(ctx context.Context, inputPath string) (string, error) {
	stem, _, _ := strings.Cut(filepath.Base(inputPath), ".")
	if stem == "" {
		return "", fmt.Errorf("cannot derive output name from %q", inputPath)
	}

	res := r.newResolver(nil)
	var b strings.Builder
	for _, word := range SplitCamel(stem) {
		repl, err := res.Resolve(ctx, word)
		if err != nil {
			return "", fmt.Errorf("resolve name word %q: %w", word, err)
		}
		b.WriteString(token.CaseAdjust(repl, word))
	}
	return b.String() + OutputExt, nil
}
