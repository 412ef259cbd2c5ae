package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

var _ service.FeedbackSource = (*StoreSource)(nil)

// FeedbackQueue is the slice of storage the store-backed source needs.
type FeedbackQueue interface {
	GetPendingFeedback(ctx context.Context, brandID int64) (*model.FeedbackSubmission, int64, error)
	MarkFeedbackConsumed(ctx context.Context, id int64) error
}

// StoreSource surfaces feedback submissions queued in storage, oldest first.
// Reviewers queue their verdicts between runs (typically through the
// feedback command) and the next run consumes them at its feedback phase.
// Each submission is consumed exactly once, and it is marked consumed before
// it is handed out so a crashed round cannot replay it.
type StoreSource struct {
	queue  FeedbackQueue
	logger *slog.Logger
}

// NewStoreSource creates a feedback source backed by the storage queue.
func NewStoreSource(queue FeedbackQueue, logger *slog.Logger) *StoreSource {
	return &StoreSource{
		queue:  queue,
		logger: logger,
	}
}

// Next returns the brand's oldest pending submission, or nil when the queue
// is empty. Queued feedback always addresses the result the reviewer last
// saw; result versions restart per run, so a version skew is logged but the
// submission still applies to the result on offer.
func (s *StoreSource) Next(ctx context.Context, brandID int64, resultVersion int) (*model.FeedbackSubmission, error) {
	submission, id, err := s.queue.GetPendingFeedback(ctx, brandID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending feedback for brand %d: %w", brandID, err)
	}

	if err := s.queue.MarkFeedbackConsumed(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to consume feedback %d: %w", id, err)
	}

	if submission.ResultVersion != resultVersion {
		s.logger.Warn("Queued feedback addresses a different result version",
			"brand_id", brandID,
			"queued_version", submission.ResultVersion,
			"offered_version", resultVersion)
	}

	s.logger.Info("Queued feedback consumed",
		"brand_id", brandID,
		"type", submission.Type,
		"result_version", resultVersion)

	return submission, nil
}
