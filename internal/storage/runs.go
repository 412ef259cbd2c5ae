package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
)

// CreateRun persists a new run record.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := run.Validate(); err != nil {
		return err
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, max_iterations, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Status, run.MaxIterations, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun marks a run finished with the given terminal status.
func (s *SQLiteStorage) CompleteRun(ctx context.Context, runID string, status model.RunStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if status != model.RunStatusCompleted && status != model.RunStatusFailed {
		return fmt.Errorf("run completion status must be terminal, got %q", status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed_at = ? WHERE id = ?
	`, status, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", common.ErrNotFound, runID)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	var run model.Run
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, max_iterations, started_at, completed_at
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.Status, &run.MaxIterations, &run.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", common.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, max_iterations, started_at, completed_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var completedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Status, &run.MaxIterations, &run.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
