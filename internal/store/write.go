package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Outcome kinds.
const (
	KindApplication = "application"
	KindScenario    = "scenario"
	KindRule        = "rule"
	KindOrder       = "order"
)

// RunParams are the parameters an upload run was started with.
type RunParams struct {
	Application string `json:"application"`
	Rule        string `json:"rule,omitempty"`
	Force       bool   `json:"force"`
	DryRun      bool   `json:"dry_run"`
}

// Run is one journaled upload.
type Run struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq"`
	RunParams
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

// Outcome is what a run did to one artifact.
type Outcome struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Action      string `json:"action"`
	RemoteID    int64  `json:"remote_id,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// BeginRun records the start of a run and returns it with its id and seq.
func (s *Store) BeginRun(ctx context.Context, p RunParams) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("begin run: next seq: %w", err)
	}

	run := Run{
		ID:        s.ids.Generate(),
		Seq:       seq,
		RunParams: p,
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, application, rule, force, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		p.Application,
		p.Rule,
		p.Force,
		p.DryRun,
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run: commit: %w", err)
	}
	return run, nil
}

// RecordOutcome appends an outcome to a run.
//
// The run must exist (foreign key constraint).
func (s *Store) RecordOutcome(ctx context.Context, runID string, o Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record outcome: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM outcomes WHERE run_id = ?`, runID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("record outcome: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, seq, kind, name, action, remote_id, content_hash, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		o.Kind,
		o.Name,
		o.Action,
		o.RemoteID,
		o.ContentHash,
		o.Detail,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	return tx.Commit()
}

// FinishRun marks a run succeeded, or failed with runErr's message.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status := StatusSucceeded
	msg := ""
	if runErr != nil {
		status = StatusFailed
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), msg, formatTime(s.now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, runID)
}

func requireRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
