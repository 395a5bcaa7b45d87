package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/deplag/internal/store"
)

// Scenario defines an end-to-end run.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the run ID and the
	// golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Window is the scheduler capacity. Zero means the default.
	Window int `yaml:"window,omitempty"`

	// Input is the text to rewrite.
	Input string `yaml:"input"`

	// ExistingOutput, when non-empty, is written to the output file before
	// the run, as if an earlier run had been interrupted.
	ExistingOutput string `yaml:"existing_output,omitempty"`

	// Synonyms maps words to the replacement the provider offers.
	Synonyms map[string]string `yaml:"synonyms,omitempty"`

	// Delays maps words to provider latency in milliseconds.
	Delays map[string]int `yaml:"delays,omitempty"`

	// Failures maps words to the number of transient provider failures
	// before the lookup succeeds.
	Failures map[string]int `yaml:"failures,omitempty"`

	// Learned seeds the store with synonyms from earlier runs.
	Learned map[string]string `yaml:"learned,omitempty"`

	// Expect describes the run result.
	Expect Expect `yaml:"expect"`

	// Assertions check cache, provider and store state after the run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect specifies the expected run result.
type Expect struct {
	// Output is the complete output file after the run.
	Output string `yaml:"output"`

	// ResumeOffset is the expected reconciled resume offset, if set.
	ResumeOffset *int64 `yaml:"resume_offset,omitempty"`

	// Seeded is the expected number of reconciliation seeds, if set.
	Seeded *int `yaml:"seeded,omitempty"`

	// Error is the expected error code (e.g. "WORD_COUNT_MISMATCH").
	// Empty means the run must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates state after the run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "cache_contains": word maps to replacement
	// - "cache_absent": word has no entry
	// - "provider_calls": word was looked up exactly count times
	// - "run_status": the run record has status
	Type string `yaml:"type"`

	Word        string `yaml:"word,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
	Count       int    `yaml:"count,omitempty"`
	Status      string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertCacheContains = "cache_contains"
	AssertCacheAbsent   = "cache_absent"
	AssertProviderCalls = "provider_calls"
	AssertRunStatus     = "run_status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Input == "" {
		return fmt.Errorf("input is required")
	}
	if s.Window < 0 {
		return fmt.Errorf("window must be non-negative")
	}
	for word, ms := range s.Delays {
		if ms < 0 {
			return fmt.Errorf("delays.%s: must be non-negative", word)
		}
	}
	for word, n := range s.Failures {
		if n < 0 {
			return fmt.Errorf("failures.%s: must be non-negative", word)
		}
	}
	if s.Expect.Error == "" && s.Expect.Output == "" {
		return fmt.Errorf("expect.output or expect.error is required")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCacheContains:
		if a.Word == "" || a.Replacement == "" {
			return fmt.Errorf("assertions[%d]: word and replacement are required for cache_contains", index)
		}
	case AssertCacheAbsent:
		if a.Word == "" {
			return fmt.Errorf("assertions[%d]: word is required for cache_absent", index)
		}
	case AssertProviderCalls:
		if a.Word == "" {
			return fmt.Errorf("assertions[%d]: word is required for provider_calls", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for provider_calls", index)
		}
	case AssertRunStatus:
		switch store.RunStatus(a.Status) {
		case store.RunRunning, store.RunCompleted, store.RunInterrupted, store.RunFailed:
		default:
			return fmt.Errorf("assertions[%d]: unknown run status %q", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
