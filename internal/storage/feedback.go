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

// SaveFeedbackSubmission queues a raw feedback submission for the next run
// and returns its storage id.
func (s *SQLiteStorage) SaveFeedbackSubmission(ctx context.Context, submission *model.FeedbackSubmission) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if submission == nil {
		return 0, fmt.Errorf("%w: submission", ErrNilParameter)
	}
	if err := submission.Validate(); err != nil {
		return 0, err
	}

	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now()
	}

	cited, err := json.Marshal(submission.CitedIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cited transactions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_submissions (brand_id, result_version, type, text, cited_ids, consumed, submitted_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, submission.BrandID, submission.ResultVersion, submission.Type, submission.Text, string(cited), submission.SubmittedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to save feedback for brand %d: %w", submission.BrandID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get feedback id: %w", err)
	}
	return id, nil
}

// GetPendingFeedback retrieves the oldest unconsumed feedback submission for
// a brand along with its storage id. Returns common.ErrNotFound when the
// brand has no pending feedback.
func (s *SQLiteStorage) GetPendingFeedback(ctx context.Context, brandID int64) (*model.FeedbackSubmission, int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}
	if err := validateBrandID(brandID); err != nil {
		return nil, 0, err
	}

	var submission model.FeedbackSubmission
	var id int64
	var cited string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand_id, result_version, type, text, cited_ids, submitted_at
		FROM feedback_submissions
		WHERE brand_id = ? AND consumed = 0
		ORDER BY submitted_at ASC, id ASC
		LIMIT 1
	`, brandID).Scan(
		&id,
		&submission.BrandID,
		&submission.ResultVersion,
		&submission.Type,
		&submission.Text,
		&cited,
		&submission.SubmittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: pending feedback for brand %d", common.ErrNotFound, brandID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get pending feedback for brand %d: %w", brandID, err)
	}

	if cited != "" {
		if err := json.Unmarshal([]byte(cited), &submission.CitedIDs); err != nil {
			return nil, 0, fmt.Errorf("failed to decode cited transactions: %w", err)
		}
	}
	return &submission, id, nil
}

// MarkFeedbackConsumed flags a submission so subsequent runs skip it.
func (s *SQLiteStorage) MarkFeedbackConsumed(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE feedback_submissions SET consumed = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark feedback %d consumed: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check feedback update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: feedback submission %d", common.ErrNotFound, id)
	}
	return nil
}
