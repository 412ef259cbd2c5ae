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

// SaveIterationState upserts a brand's iteration state for a run. Unlike
// rules and results, iteration state is mutable: the engine rewrites it on
// every transition so an interrupted run can be inspected.
func (s *SQLiteStorage) SaveIterationState(ctx context.Context, runID string, state *model.IterationState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: state", ErrNilParameter)
	}
	if err := validateBrandID(state.BrandID); err != nil {
		return err
	}

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iteration_states (run_id, brand_id, status, iteration_count, max_iterations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, brand_id) DO UPDATE SET
			status = excluded.status,
			iteration_count = excluded.iteration_count,
			max_iterations = excluded.max_iterations,
			updated_at = excluded.updated_at
	`, runID, state.BrandID, state.Status, state.IterationCount, state.MaxIterations, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save iteration state for brand %d: %w", state.BrandID, err)
	}
	return nil
}

// GetIterationState retrieves one brand's iteration state for a run.
func (s *SQLiteStorage) GetIterationState(ctx context.Context, runID string, brandID int64) (*model.IterationState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	var state model.IterationState
	err := s.db.QueryRowContext(ctx, `
		SELECT brand_id, status, iteration_count, max_iterations, updated_at
		FROM iteration_states
		WHERE run_id = ? AND brand_id = ?
	`, runID, brandID).Scan(
		&state.BrandID,
		&state.Status,
		&state.IterationCount,
		&state.MaxIterations,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: iteration state %s/%d", common.ErrNotFound, runID, brandID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get iteration state %s/%d: %w", runID, brandID, err)
	}
	return &state, nil
}

// ListIterationStates returns every brand's iteration state for a run,
// ordered by brand id.
func (s *SQLiteStorage) ListIterationStates(ctx context.Context, runID string) ([]model.IterationState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT brand_id, status, iteration_count, max_iterations, updated_at
		FROM iteration_states
		WHERE run_id = ?
		ORDER BY brand_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list iteration states for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var states []model.IterationState
	for rows.Next() {
		var state model.IterationState
		if err := rows.Scan(&state.BrandID, &state.Status, &state.IterationCount, &state.MaxIterations, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
