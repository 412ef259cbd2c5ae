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

// SaveDirective persists a refinement directive. Directives accumulate as an
// append-only history per brand.
func (s *SQLiteStorage) SaveDirective(ctx context.Context, directive *model.RefinementDirective) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if directive == nil {
		return fmt.Errorf("%w: directive", ErrNilParameter)
	}
	if err := directive.Validate(); err != nil {
		return err
	}

	if directive.CreatedAt.IsZero() {
		directive.CreatedAt = time.Now()
	}

	cited, err := json.Marshal(directive.CitedTransactionIDs)
	if err != nil {
		return fmt.Errorf("failed to encode cited transactions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refinement_directives (brand_id, result_version, issue_category, summary, cited_transaction_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, directive.BrandID, directive.ResultVersion, directive.IssueCategory, directive.Summary, string(cited), directive.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save directive for brand %d: %w", directive.BrandID, err)
	}
	return nil
}

// GetLatestDirective retrieves the brand's most recent refinement directive.
// Returns common.ErrNotFound when the brand has no directives.
func (s *SQLiteStorage) GetLatestDirective(ctx context.Context, brandID int64) (*model.RefinementDirective, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, err
	}

	var directive model.RefinementDirective
	var cited string
	err := s.db.QueryRowContext(ctx, `
		SELECT brand_id, result_version, issue_category, summary, cited_transaction_ids, created_at
		FROM refinement_directives
		WHERE brand_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, brandID).Scan(
		&directive.BrandID,
		&directive.ResultVersion,
		&directive.IssueCategory,
		&directive.Summary,
		&cited,
		&directive.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: directives for brand %d", common.ErrNotFound, brandID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directive for brand %d: %w", brandID, err)
	}

	if cited != "" {
		if err := json.Unmarshal([]byte(cited), &directive.CitedTransactionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode cited transactions: %w", err)
		}
	}
	return &directive, nil
}
