package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

// Run is one recorded pipeline run. Times are Unix milliseconds.
type Run struct {
	Seq          int64     `json:"seq"`
	ID           string    `json:"id"`
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	Capacity     int       `json:"capacity"`
	ResumeOffset int64     `json:"resume_offset"`
	Seeded       int       `json:"seeded"`
	Flushed      int64     `json:"flushed"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	StartedAt    int64     `json:"started_at"`
	FinishedAt   int64     `json:"finished_at,omitempty"`
}

// BeginRun records a run in the running state.
// Uses ON CONFLICT(id) DO NOTHING: beginning the same run twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input, output, capacity, resume_offset, seeded, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Input,
		run.Output,
		run.Capacity,
		run.ResumeOffset,
		run.Seeded,
		string(RunRunning),
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run started with BeginRun.
// Returns sql.ErrNoRows if no such run exists.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, flushed int64, runErr string, finishedAt int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, flushed = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), flushed, runErr, finishedAt, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReadRun returns the run with the given id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, input, output, capacity, resume_offset, seeded, flushed, status, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first. A limit of 0 or less
// returns every run.
//
// Returns an empty slice (not nil) when no run has been recorded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, input, output, capacity, resume_offset, seeded, flushed, status, error, started_at, finished_at
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var status string
	err := sc.Scan(
		&run.Seq,
		&run.ID,
		&run.Input,
		&run.Output,
		&run.Capacity,
		&run.ResumeOffset,
		&run.Seeded,
		&run.Flushed,
		&status,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	return run, nil
}
