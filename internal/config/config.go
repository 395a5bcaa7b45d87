// Package config loads deplag configuration from CUE files.
//
// A file is unified with the embedded #Config schema, which supplies
// defaults and constraints, then validated concretely and decoded. Every
// field is optional:
//
//	window: 20
//	db:     "deplag.db"
//	provider: {
//		kind:    "lexicon"
//		lexicon: "words.yaml"
//	}
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Provider kinds.
const (
	ProviderDatamuse = "datamuse"
	ProviderLexicon  = "lexicon"
)

// Config is the resolved configuration of a run.
type Config struct {
	Window        int            `json:"window"`
	History       int            `json:"history"`
	MinWordLength int            `json:"min_word_length"`
	DB            string         `json:"db"`
	Provider      ProviderConfig `json:"provider"`
}

// ProviderConfig selects and tunes the synonym provider.
type ProviderConfig struct {
	Kind           string        `json:"kind"`
	BaseURL        string        `json:"base_url"`
	MaxResults     int           `json:"max_results"`
	Timeout        time.Duration `json:"timeout"`
	BackoffCeiling time.Duration `json:"backoff_ceiling"`
	MaxAttempts    int           `json:"max_attempts"`
	Lexicon        string        `json:"lexicon"`
}

// Default returns the configuration used when no file is given. It matches
// the defaults of the embedded schema.
func Default() Config {
	return Config{
		Window:        60,
		History:       60,
		MinWordLength: 3,
		Provider: ProviderConfig{
			Kind:           ProviderDatamuse,
			BaseURL:        "https://api.datamuse.com/",
			MaxResults:     10,
			Timeout:        30 * time.Second,
			BackoffCeiling: 400 * time.Millisecond,
		},
	}
}

// Error reports a configuration file that could not be loaded.
type Error struct {
	Code    string
	Message string
	Path    string
}

// Error codes.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeInvalid  = "CONFIG_INVALID"
)

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalid returns true if err is a configuration validation error.
func IsInvalid(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodeInvalid
}

// fileConfig mirrors #Config as decoded from CUE.
type fileConfig struct {
	Window        int    `json:"window"`
	History       int    `json:"history"`
	MinWordLength int    `json:"min_word_length"`
	DB            string `json:"db"`
	Provider      struct {
		Kind           string `json:"kind"`
		BaseURL        string `json:"base_url"`
		MaxResults     int    `json:"max_results"`
		Timeout        string `json:"timeout"`
		BackoffCeiling string `json:"backoff_ceiling"`
		MaxAttempts    int    `json:"max_attempts"`
		Lexicon        string `json:"lexicon"`
	} `json:"provider"`
}

// Load reads the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, &Error{Code: ErrCodeNotFound, Message: "config file not found", Path: path}
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies CUE source with the schema and decodes it. filename is used
// in error positions.
func Parse(data []byte, filename string) (Config, error) {
	invalid := func(format string, args ...any) (Config, error) {
		return Config{}, &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf(format, args...), Path: filename}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return invalid("parse: %v", err)
	}

	value := def.Unify(user)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return invalid("%v", err)
	}

	var raw fileConfig
	if err := value.Decode(&raw); err != nil {
		return invalid("decode: %v", err)
	}

	var err error
	cfg := Config{
		Window:        raw.Window,
		History:       raw.History,
		MinWordLength: raw.MinWordLength,
		DB:            raw.DB,
		Provider: ProviderConfig{
			Kind:        raw.Provider.Kind,
			BaseURL:     raw.Provider.BaseURL,
			MaxResults:  raw.Provider.MaxResults,
			MaxAttempts: raw.Provider.MaxAttempts,
			Lexicon:     raw.Provider.Lexicon,
		},
	}
	if cfg.Provider.Timeout, err = parseDuration("provider.timeout", raw.Provider.Timeout); err != nil {
		return invalid("%v", err)
	}
	if cfg.Provider.BackoffCeiling, err = parseDuration("provider.backoff_ceiling", raw.Provider.BackoffCeiling); err != nil {
		return invalid("%v", err)
	}
	if cfg.Provider.Kind == ProviderLexicon && cfg.Provider.Lexicon == "" {
		return invalid("provider.lexicon is required when provider.kind is %q", ProviderLexicon)
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}
