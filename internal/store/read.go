package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ArtifactEntry is one outcome for an artifact together with its run.
type ArtifactEntry struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	DryRun    bool      `json:"dry_run"`
	Outcome
}

// GetRun returns a run with its outcomes.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, application, rule, force, dry_run, status, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}

	run.Outcomes, err = s.outcomes(ctx, run.ID)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, with their outcomes.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, application, rule, force, dry_run, status, error, started_at, finished_at
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		runs[i].Outcomes, err = s.outcomes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// History returns the outcomes recorded for one artifact, newest run first.
func (s *Store) History(ctx context.Context, kind, name string) ([]ArtifactEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.dry_run,
		       o.kind, o.name, o.action, o.remote_id, o.content_hash, o.detail
		FROM outcomes o
		JOIN runs r ON r.id = o.run_id
		WHERE o.kind = ? AND o.name = ?
		ORDER BY r.seq DESC, o.seq ASC
	`, kind, name)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var entries []ArtifactEntry
	for rows.Next() {
		var e ArtifactEntry
		var started string
		if err := rows.Scan(
			&e.RunID, &started, &e.DryRun,
			&e.Kind, &e.Name, &e.Action, &e.RemoteID, &e.ContentHash, &e.Detail,
		); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, action, remote_id, content_hash, detail
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Kind, &o.Name, &o.Action, &o.RemoteID, &o.ContentHash, &o.Detail); err != nil {
			return nil, fmt.Errorf("load outcomes: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status, started, finished string
	err := row.Scan(
		&run.ID, &run.Seq, &run.Application, &run.Rule, &run.Force, &run.DryRun,
		&status, &run.Error, &started, &finished,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
