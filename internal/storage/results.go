package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
)

// resultPayload is the JSON-encoded column set of a classification result,
// used both for persistence and for idempotency comparison.
type resultPayload struct {
	confirmed      string
	excluded       string
	tiesResolved   string
	unresolvedTies string
	stats          string
}

func encodeResultPayload(result *model.ClassificationResult) (*resultPayload, error) {
	confirmed, err := json.Marshal(result.Confirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode confirmed set: %w", err)
	}
	excluded, err := json.Marshal(result.Excluded)
	if err != nil {
		return nil, fmt.Errorf("failed to encode excluded set: %w", err)
	}
	tiesResolved, err := json.Marshal(result.TiesResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolved ties: %w", err)
	}
	unresolvedTies, err := json.Marshal(result.UnresolvedTies)
	if err != nil {
		return nil, fmt.Errorf("failed to encode unresolved ties: %w", err)
	}
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stats: %w", err)
	}
	return &resultPayload{
		confirmed:      string(confirmed),
		excluded:       string(excluded),
		tiesResolved:   string(tiesResolved),
		unresolvedTies: string(unresolvedTies),
		stats:          string(stats),
	}, nil
}

func (p *resultPayload) equal(other *resultPayload) bool {
	return p.confirmed == other.confirmed &&
		p.excluded == other.excluded &&
		p.tiesResolved == other.tiesResolved &&
		p.unresolvedTies == other.unresolvedTies &&
		p.stats == other.stats
}

// SaveResult persists a classification result under its deterministic
// (run, brand, version) key. Saving an identical result again is a no-op;
// saving a different payload under an existing key fails with
// common.ErrResultConflict because result versions are write-once.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if err := result.Validate(nil); err != nil {
		return err
	}
	if result.Version <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, result.Version)
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	payload, err := encodeResultPayload(result)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing resultPayload
	var existingRuleVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT rule_version, confirmed, excluded, ties_resolved, unresolved_ties, stats
		FROM classification_results
		WHERE run_id = ? AND brand_id = ? AND version = ?
	`, result.RunID, result.BrandID, result.Version).Scan(
		&existingRuleVersion,
		&existing.confirmed,
		&existing.excluded,
		&existing.tiesResolved,
		&existing.unresolvedTies,
		&existing.stats,
	)
	switch {
	case err == nil:
		if existingRuleVersion == result.RuleVersion && existing.equal(payload) {
			return nil
		}
		return fmt.Errorf("%w: result %s/%d v%d already exists with different contents",
			common.ErrResultConflict, result.RunID, result.BrandID, result.Version)
	case errors.Is(err, sql.ErrNoRows):
		// First write of this version
	default:
		return fmt.Errorf("failed to check result existence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classification_results
			(run_id, brand_id, version, rule_version, confirmed, excluded, ties_resolved, unresolved_ties, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, result.BrandID, result.Version, result.RuleVersion,
		payload.confirmed, payload.excluded, payload.tiesResolved, payload.unresolvedTies, payload.stats,
		result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save result %s/%d v%d: %w", result.RunID, result.BrandID, result.Version, err)
	}

	return tx.Commit()
}

// GetResult retrieves a specific result version.
func (s *SQLiteStorage) GetResult(ctx context.Context, runID string, brandID int64, version int) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	result, err := scanResult(s.db.QueryRowContext(ctx, `
		SELECT run_id, brand_id, version, rule_version, confirmed, excluded, ties_resolved, unresolved_ties, stats, created_at
		FROM classification_results
		WHERE run_id = ? AND brand_id = ? AND version = ?
	`, runID, brandID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: result %s/%d v%d", common.ErrNotFound, runID, brandID, version)
	}
	return result, err
}

// GetLatestResult retrieves the brand's most recent result across all runs.
// The latest version is authoritative for downstream consumers.
func (s *SQLiteStorage) GetLatestResult(ctx context.Context, brandID int64) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	result, err := scanResult(s.db.QueryRowContext(ctx, `
		SELECT run_id, brand_id, version, rule_version, confirmed, excluded, ties_resolved, unresolved_ties, stats, created_at
		FROM classification_results
		WHERE brand_id = ?
		ORDER BY created_at DESC, version DESC
		LIMIT 1
	`, brandID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: results for brand %d", common.ErrNotFound, brandID)
	}
	return result, err
}

// ListResultsByRun returns every result persisted by a run, ordered by brand
// then version.
func (s *SQLiteStorage) ListResultsByRun(ctx context.Context, runID string) ([]model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, brand_id, version, rule_version, confirmed, excluded, ties_resolved, unresolved_ties, stats, created_at
		FROM classification_results
		WHERE run_id = ?
		ORDER BY brand_id, version
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.ClassificationResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

func scanResult(row rowScanner) (*model.ClassificationResult, error) {
	var result model.ClassificationResult
	var payload resultPayload
	err := row.Scan(
		&result.RunID,
		&result.BrandID,
		&result.Version,
		&result.RuleVersion,
		&payload.confirmed,
		&payload.excluded,
		&payload.tiesResolved,
		&payload.unresolvedTies,
		&payload.stats,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	if err := json.Unmarshal([]byte(payload.confirmed), &result.Confirmed); err != nil {
		return nil, fmt.Errorf("failed to decode confirmed set: %w", err)
	}
	if err := json.Unmarshal([]byte(payload.excluded), &result.Excluded); err != nil {
		return nil, fmt.Errorf("failed to decode excluded set: %w", err)
	}
	if err := json.Unmarshal([]byte(payload.tiesResolved), &result.TiesResolved); err != nil {
		return nil, fmt.Errorf("failed to decode resolved ties: %w", err)
	}
	if err := json.Unmarshal([]byte(payload.unresolvedTies), &result.UnresolvedTies); err != nil {
		return nil, fmt.Errorf("failed to decode unresolved ties: %w", err)
	}
	if err := json.Unmarshal([]byte(payload.stats), &result.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &result, nil
}
