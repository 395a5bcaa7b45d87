package testutil

// FixedIDGenerator returns the same run ID every time.
//
// This enables deterministic run records and golden output comparison.
// Implements runner.IDGenerator.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
