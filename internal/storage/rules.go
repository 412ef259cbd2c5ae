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

// SaveRule persists a rule version. Rule versions are write-once: saving an
// already-stored (brand, version) pair fails with ErrDuplicateEntry. Saving
// an active rule deactivates every prior version of the brand.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	categorySet, err := json.Marshal(rule.CategorySet)
	if err != nil {
		return fmt.Errorf("failed to encode category set: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rules WHERE brand_id = ? AND version = ?)
	`, rule.BrandID, rule.Version).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: rule %d v%d", common.ErrDuplicateEntry, rule.BrandID, rule.Version)
	}

	if rule.Active {
		if _, err := tx.ExecContext(ctx, `UPDATE rules SET active = 0 WHERE brand_id = ?`, rule.BrandID); err != nil {
			return fmt.Errorf("failed to deactivate prior rules: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (brand_id, version, pattern, category_set, confidence, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rule.BrandID, rule.Version, rule.Pattern, string(categorySet), rule.Confidence, rule.Active, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule %d v%d: %w", rule.BrandID, rule.Version, err)
	}

	return tx.Commit()
}

// GetRule retrieves a specific rule version.
func (s *SQLiteStorage) GetRule(ctx context.Context, brandID int64, version int) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	rule, err := s.scanRule(s.db.QueryRowContext(ctx, `
		SELECT brand_id, version, pattern, category_set, confidence, active, created_at
		FROM rules
		WHERE brand_id = ? AND version = ?
	`, brandID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %d v%d", common.ErrNotFound, brandID, version)
	}
	return rule, err
}

// GetActiveRule retrieves the brand's current active rule. Returns
// common.ErrNotFound when the brand has no active rule yet.
func (s *SQLiteStorage) GetActiveRule(ctx context.Context, brandID int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	rule, err := s.scanRule(s.db.QueryRowContext(ctx, `
		SELECT brand_id, version, pattern, category_set, confidence, active, created_at
		FROM rules
		WHERE brand_id = ? AND active = 1
		ORDER BY version DESC
		LIMIT 1
	`, brandID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: active rule for brand %d", common.ErrNotFound, brandID)
	}
	return rule, err
}

// ListRuleVersions returns the full version history for a brand, oldest
// first. Prior versions are never overwritten, so this is the audit trail.
func (s *SQLiteStorage) ListRuleVersions(ctx context.Context, brandID int64) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT brand_id, version, pattern, category_set, confidence, active, created_at
		FROM rules
		WHERE brand_id = ?
		ORDER BY version ASC
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// NextRuleVersion returns the next unused version number for a brand.
func (s *SQLiteStorage) NextRuleVersion(ctx context.Context, brandID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateBrandID(brandID); err != nil {
		return 0, err
	}

	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM rules WHERE brand_id = ?
	`, brandID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next rule version: %w", err)
	}
	return next, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStorage) scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var categorySet string
	if err := row.Scan(&rule.BrandID, &rule.Version, &rule.Pattern, &categorySet, &rule.Confidence, &rule.Active, &rule.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	if err := json.Unmarshal([]byte(categorySet), &rule.CategorySet); err != nil {
		return nil, fmt.Errorf("failed to decode category set for rule %d v%d: %w", rule.BrandID, rule.Version, err)
	}
	return &rule, nil
}
