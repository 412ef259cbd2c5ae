package model

import (
	"fmt"
	"time"
)

// IssueCategory classifies what a piece of feedback says is wrong with a
// brand's current rule.
type IssueCategory string

const (
	// IssuePatternTooBroad indicates the pattern matches unrelated merchants.
	IssuePatternTooBroad IssueCategory = "pattern-too-broad"
	// IssuePatternTooNarrow indicates the pattern misses legitimate matches.
	IssuePatternTooNarrow IssueCategory = "pattern-too-narrow"
	// IssueCategoryMismatch indicates the category set is wrong for the brand.
	IssueCategoryMismatch IssueCategory = "category-mismatch"
	// IssueProxyContamination indicates matches are dominated by third-party
	// processor narratives.
	IssueProxyContamination IssueCategory = "proxy-text-contamination"
)

// ValidIssueCategory reports whether the value is one of the known issue
// categories.
func ValidIssueCategory(c IssueCategory) bool {
	switch c {
	case IssuePatternTooBroad, IssuePatternTooNarrow, IssueCategoryMismatch, IssueProxyContamination:
		return true
	default:
		return false
	}
}

// RefinementDirective is the structured form of one feedback submission,
// produced by the feedback ingestor and passed to the rule producer as
// guidance for the next iteration.
type RefinementDirective struct {
	CreatedAt           time.Time       `json:"created_at"`
	Summary             string          `json:"summary"`
	CitedTransactionIDs []TransactionID `json:"cited_transaction_ids,omitempty"`
	IssueCategory       IssueCategory   `json:"issue_category"`
	BrandID             int64           `json:"brand_id"`
	ResultVersion       int             `json:"result_version"`
}

// Validate checks directive shape before persistence.
func (d *RefinementDirective) Validate() error {
	if d.BrandID <= 0 {
		return fmt.Errorf("directive brand id is required")
	}
	if !ValidIssueCategory(d.IssueCategory) {
		return fmt.Errorf("unknown issue category %q", d.IssueCategory)
	}
	return nil
}

// FeedbackType distinguishes the kinds of feedback the submission interface
// accepts.
type FeedbackType string

const (
	// FeedbackGeneral is free-text commentary on the brand's result.
	FeedbackGeneral FeedbackType = "general"
	// FeedbackSpecificExamples cites concrete transactions as evidence.
	FeedbackSpecificExamples FeedbackType = "specific_examples"
	// FeedbackApprove accepts the result as-is.
	FeedbackApprove FeedbackType = "approve"
	// FeedbackReject asks for another refinement iteration.
	FeedbackReject FeedbackType = "reject"
)

// ValidFeedbackType reports whether the value is a known feedback type.
func ValidFeedbackType(t FeedbackType) bool {
	switch t {
	case FeedbackGeneral, FeedbackSpecificExamples, FeedbackApprove, FeedbackReject:
		return true
	default:
		return false
	}
}

// FeedbackSubmission is the raw payload accepted by the feedback submission
// interface before interpretation.
type FeedbackSubmission struct {
	SubmittedAt   time.Time       `json:"submitted_at"`
	Text          string          `json:"text"`
	CitedIDs      []TransactionID `json:"cited_ids,omitempty"`
	Type          FeedbackType    `json:"type"`
	BrandID       int64           `json:"brand_id"`
	ResultVersion int             `json:"result_version"`
}

// Validate checks submission shape at the interface boundary.
func (f *FeedbackSubmission) Validate() error {
	if f.BrandID <= 0 {
		return fmt.Errorf("feedback brand id is required")
	}
	if !ValidFeedbackType(f.Type) {
		return fmt.Errorf("unknown feedback type %q", f.Type)
	}
	if f.Type != FeedbackApprove && f.Text == "" && len(f.CitedIDs) == 0 {
		return fmt.Errorf("feedback of type %q requires text or cited transactions", f.Type)
	}
	return nil
}

// Rejects reports whether the submission asks for another iteration.
func (f *FeedbackSubmission) Rejects() bool {
	return f.Type == FeedbackReject
}
