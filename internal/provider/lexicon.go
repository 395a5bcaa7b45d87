package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/deplag/internal/token"
)

// Lexicon is an offline Provider backed by a YAML word list.
//
// File format:
//
//	words:
//	  quick:
//	    tags: [adj]
//	    synonyms:
//	      - word: speedy
//	        tags: [adj]
//	      - word: fast
//	        tags: [adj, adv]
//
// Lookups fold the word, so entries should be written in lowercase.
// Thread-safety: a Lexicon is read-only after loading and safe for
// concurrent use.
type Lexicon struct {
	Words map[string]LexiconEntry `yaml:"words"`
}

// LexiconEntry describes one headword.
type LexiconEntry struct {
	Tags     []string    `yaml:"tags"`
	Synonyms []Candidate `yaml:"synonyms"`
}

// LoadLexicon reads and parses a lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon parses lexicon YAML, rejecting unknown fields.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon YAML: %w", err)
	}

	folded := make(map[string]LexiconEntry, len(lex.Words))
	for word, entry := range lex.Words {
		if word == "" {
			return nil, fmt.Errorf("invalid lexicon: empty headword")
		}
		for i, syn := range entry.Synonyms {
			if syn.Word == "" {
				return nil, fmt.Errorf("invalid lexicon: %s.synonyms[%d]: word is required", word, i)
			}
		}
		folded[token.Fold(word)] = entry
	}
	lex.Words = folded
	return &lex, nil
}

// PartsOfSpeech implements Provider.
func (l *Lexicon) PartsOfSpeech(_ context.Context, word string) ([]string, error) {
	return l.Words[token.Fold(word)].Tags, nil
}

// Candidates implements Provider.
func (l *Lexicon) Candidates(_ context.Context, word string) ([]Candidate, error) {
	return l.Words[token.Fold(word)].Synonyms, nil
}
