package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// DirectiveStore is the slice of storage the ingestor needs: the brand's
// match history for cited-id validation and directive persistence.
type DirectiveStore interface {
	GetMatchHistory(ctx context.Context, brandID int64) ([]model.TransactionID, error)
	SaveDirective(ctx context.Context, directive *model.RefinementDirective) error
}

// Ingestor converts raw feedback submissions into persisted refinement
// directives. Cited transaction ids are validated against the brand's match
// history; ids the engine never matched are dropped and logged, never
// trusted.
type Ingestor struct {
	interpreter service.FeedbackInterpreter
	store       DirectiveStore
	logger      *slog.Logger
}

// NewIngestor creates a feedback ingestor.
func NewIngestor(interpreter service.FeedbackInterpreter, store DirectiveStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		interpreter: interpreter,
		store:       store,
		logger:      logger,
	}
}

// Ingest normalizes one submission. Approvals return a nil directive: the
// result stands and no refinement is requested. Everything else goes through
// the interpreter and comes back as a stored directive.
func (i *Ingestor) Ingest(ctx context.Context, submission *model.FeedbackSubmission) (*model.RefinementDirective, error) {
	if err := submission.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback submission: %w", err)
	}

	if submission.Type == model.FeedbackApprove {
		i.logger.Info("feedback approved result",
			"brand_id", submission.BrandID,
			"result_version", submission.ResultVersion)
		return nil, nil
	}

	interp, err := i.interpreter.Interpret(ctx, submission.Text, submission.CitedIDs)
	if err != nil {
		return nil, fmt.Errorf("feedback interpretation failed: %w", err)
	}

	cited, err := i.validateCited(ctx, submission.BrandID, mergeCited(submission.CitedIDs, interp.CitedTransactionIDs))
	if err != nil {
		return nil, err
	}

	directive := &model.RefinementDirective{
		BrandID:             submission.BrandID,
		ResultVersion:       submission.ResultVersion,
		IssueCategory:       interp.IssueCategory,
		Summary:             interp.Summary,
		CitedTransactionIDs: cited,
		CreatedAt:           time.Now(),
	}

	if err := i.store.SaveDirective(ctx, directive); err != nil {
		return nil, fmt.Errorf("failed to save directive: %w", err)
	}

	i.logger.Info("refinement directive created",
		"brand_id", directive.BrandID,
		"issue", directive.IssueCategory,
		"cited", len(directive.CitedTransactionIDs))

	return directive, nil
}

// validateCited keeps only cited ids present in the brand's match history.
func (i *Ingestor) validateCited(ctx context.Context, brandID int64, cited []model.TransactionID) ([]model.TransactionID, error) {
	if len(cited) == 0 {
		return nil, nil
	}

	history, err := i.store.GetMatchHistory(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match history: %w", err)
	}

	known := make(map[string]bool, len(history))
	for _, id := range history {
		known[id.Key()] = true
	}

	valid := make([]model.TransactionID, 0, len(cited))
	dropped := 0
	for _, id := range cited {
		if known[id.Key()] {
			valid = append(valid, id)
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		i.logger.Warn("dropped cited transactions unknown to brand match history",
			"brand_id", brandID,
			"dropped", dropped,
			"kept", len(valid))
	}

	return valid, nil
}

// mergeCited unions the submitter's ids with the interpreter's, preserving
// first-seen order.
func mergeCited(submitted, interpreted []model.TransactionID) []model.TransactionID {
	seen := make(map[string]bool, len(submitted)+len(interpreted))
	var merged []model.TransactionID
	for _, id := range submitted {
		if !seen[id.Key()] {
			seen[id.Key()] = true
			merged = append(merged, id)
		}
	}
	for _, id := range interpreted {
		if !seen[id.Key()] {
			seen[id.Key()] = true
			merged = append(merged, id)
		}
	}
	return merged
}
