package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/deplag/internal/cache"
	"github.com/roach88/deplag/internal/token"
)

// CallCounter reports provider lookups per word.
// Implemented by testutil.ScriptedProvider.
type CallCounter interface {
	Calls(word string) int
}

// AssertionError is returned when an assertion fails.
// It includes the cache snapshot to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Cache    []cache.Entry // Final cache for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Cache) > 0 {
		fmt.Fprintf(&buf, "\nCache:\n")
		for _, entry := range e.Cache {
			fmt.Fprintf(&buf, "  %s -> %s\n", entry.Word, entry.Replacement)
		}
	}
	return buf.String()
}

func lookupCache(entries []cache.Entry, word string) (string, bool) {
	key := token.Fold(word)
	for _, e := range entries {
		if e.Word == key {
			return e.Replacement, true
		}
	}
	return "", false
}

func assertCacheContains(result *Result, a Assertion) error {
	got, ok := lookupCache(result.Cache, a.Word)
	if ok && got == token.Fold(a.Replacement) {
		return nil
	}
	actual := "no entry"
	if ok {
		actual = fmt.Sprintf("%s -> %s", token.Fold(a.Word), got)
	}
	return &AssertionError{
		Type:     AssertCacheContains,
		Expected: fmt.Sprintf("%s -> %s", token.Fold(a.Word), token.Fold(a.Replacement)),
		Actual:   actual,
		Cache:    result.Cache,
	}
}

func assertCacheAbsent(result *Result, a Assertion) error {
	got, ok := lookupCache(result.Cache, a.Word)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertCacheAbsent,
		Expected: fmt.Sprintf("no entry for %s", token.Fold(a.Word)),
		Actual:   fmt.Sprintf("%s -> %s", token.Fold(a.Word), got),
		Cache:    result.Cache,
	}
}

func assertProviderCalls(calls CallCounter, a Assertion) error {
	got := calls.Calls(a.Word)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertProviderCalls,
		Expected: fmt.Sprintf("%d lookup(s) of %s", a.Count, a.Word),
		Actual:   fmt.Sprintf("%d lookup(s)", got),
	}
}

func assertRunStatus(result *Result, a Assertion) error {
	if result.RunStatus == a.Status {
		return nil
	}
	actual := result.RunStatus
	if actual == "" {
		actual = "no run recorded"
	}
	return &AssertionError{
		Type:     AssertRunStatus,
		Expected: a.Status,
		Actual:   actual,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, calls CallCounter) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCacheContains:
			err = assertCacheContains(result, assertion)
		case AssertCacheAbsent:
			err = assertCacheAbsent(result, assertion)
		case AssertProviderCalls:
			if calls == nil {
				err = fmt.Errorf("assertion[%d]: provider_calls requires a call counter", i)
			} else {
				err = assertProviderCalls(calls, assertion)
			}
		case AssertRunStatus:
			err = assertRunStatus(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
