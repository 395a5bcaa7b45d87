package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ctx returns a context cancelled when the test ends.
func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return c
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, startedAt int64) Run {
	return Run{
		ID:        id,
		Input:     "input/" + id + ".txt",
		Output:    "output/" + id + ".txt",
		Capacity:  60,
		StartedAt: startedAt,
	}
}
