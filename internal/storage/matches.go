package storage

import (
	"context"
	"fmt"

	"github.com/ledgerline/brandmatch/internal/model"
)

// SaveMatchRecords persists a match set for a run. Inserts are idempotent on
// the (run, transaction, brand) key so barrier retries can re-save the same
// set safely.
func (s *SQLiteStorage) SaveMatchRecords(ctx context.Context, runID string, records model.MatchSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO match_records (run_id, record_id, source_id, brand_id, rule_version)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if rec.TransactionID.IsZero() {
			return fmt.Errorf("match record with empty transaction id for brand %d", rec.BrandID)
		}
		if _, err := stmt.ExecContext(ctx, runID, rec.TransactionID.RecordID, rec.TransactionID.SourceID, rec.BrandID, rec.RuleVersion); err != nil {
			return fmt.Errorf("failed to save match record %s: %w", rec.TransactionID, err)
		}
	}

	return tx.Commit()
}

// GetMatchHistory returns every transaction id the brand has ever matched,
// across all runs, in canonical order. The feedback ingestor uses this to
// validate cited transactions.
func (s *SQLiteStorage) GetMatchHistory(ctx context.Context, brandID int64) ([]model.TransactionID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT record_id, source_id
		FROM match_records
		WHERE brand_id = ?
		ORDER BY record_id, source_id
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []model.TransactionID
	for rows.Next() {
		var id model.TransactionID
		if err := rows.Scan(&id.RecordID, &id.SourceID); err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
