package token

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Parse splits raw token text into its framing parts.
//
// The whitespace run starts at the first whitespace character. Punctuation is
// trimmed with the token's own alphabet: the distinct punctuation characters
// that occur in raw, not a global set. Tokens without a letter keep their
// text verbatim in leading and have an empty core.
func Parse(raw string) (leading, core, trailing, whitespace string) {
	body := raw
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		body, whitespace = raw[:i], raw[i:]
	}

	if !strings.ContainsFunc(body, unicode.IsLetter) {
		return body, "", "", whitespace
	}

	alphabet := PunctuationAlphabet(body)
	if alphabet == "" {
		return "", body, "", whitespace
	}

	rest := strings.TrimLeft(body, alphabet)
	leading = body[:len(body)-len(rest)]
	core = strings.TrimRight(rest, alphabet)
	trailing = rest[len(core):]
	return leading, core, trailing, whitespace
}

// PunctuationAlphabet returns the distinct punctuation runes of s, in first
// occurrence order. The result is a cutset for strings.Trim.
func PunctuationAlphabet(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) && !strings.ContainsRune(b.String(), r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Render composes output text from the token framing and a replacement word.
func Render(leading, original, replacement, trailing, whitespace string) string {
	return leading + CaseAdjust(replacement, original) + trailing + whitespace
}

// CaseAdjust copies the capitalization pattern of original onto replacement.
//
// An all-uppercase original uppercases the whole replacement; a capitalized
// original uppercases only the first character; anything else returns the
// replacement unchanged.
func CaseAdjust(replacement, original string) string {
	if replacement == "" || original == "" {
		return replacement
	}
	first, _ := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(first) {
		return replacement
	}
	if allUpper(original) {
		return cases.Upper(language.Und).String(replacement)
	}
	r, size := utf8.DecodeRuneInString(replacement)
	return cases.Upper(language.Und).String(string(r)) + replacement[size:]
}

func allUpper(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// Fold returns the cache key form of a word: lowercased and NFC-normalized.
func Fold(word string) string {
	return norm.NFC.String(cases.Lower(language.Und).String(word))
}
