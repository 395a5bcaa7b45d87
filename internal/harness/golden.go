package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text stored in golden files: a header of
// resume state, the output verbatim, and the sorted cache.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	if result.ErrorCode != "" {
		fmt.Fprintf(&b, "error: %s\n", result.ErrorCode)
	}
	fmt.Fprintf(&b, "resume_offset: %d\n", result.ResumeOffset)
	fmt.Fprintf(&b, "seeded: %d\n", result.Seeded)
	fmt.Fprintf(&b, "flushed: %d\n", result.Flushed)
	status := result.RunStatus
	if status == "" {
		status = "none"
	}
	fmt.Fprintf(&b, "status: %s\n", status)
	b.WriteString("--- output\n")
	b.WriteString(result.Output)
	b.WriteString("--- cache\n")
	for _, e := range result.Cache {
		fmt.Fprintf(&b, "%s -> %s\n", e.Word, e.Replacement)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
