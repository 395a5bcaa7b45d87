// Package store keeps deplag's durable state in a SQLite file.
//
// Two tables:
//   - synonyms: every substitution a run has learned, keyed by folded word,
//     with the ID of the run that learned it
//   - runs: one row per run, written at start and updated with the outcome
//
// A word is learned at most once. Writes use ON CONFLICT DO NOTHING and
// return the stored replacement, which is the same first-writer-wins rule
// the in-memory cache follows, so a store never contradicts a cache seeded
// from it.
//
// Rows are ordered by their seq column. Timestamps are recorded for display
// only.
//
// A run row left in status "running" belongs to a process that was killed
// before it could record an outcome.
package store
