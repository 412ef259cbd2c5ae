// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerline/brandmatch/internal/model"
)

// TransactionFilter defines filtering options for catalog transaction queries.
type TransactionFilter struct {
	SourceIDs   []string
	CategoryIDs []int64
	BrandIDs    []int64
	Limit       int
	Offset      int
}

// CatalogStore is the read-only provider of reference data. The store does
// not guarantee referential integrity; callers must validate every foreign
// key before use. A store failure is fatal to the run.
type CatalogStore interface {
	GetBrands(ctx context.Context) ([]model.Brand, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
}

// RuleGuidance carries everything the rule producer may use to refine its
// next candidate: the confidence score of the prior rule, the latest
// structured feedback, and the reason the previous candidate was rejected
// when it failed validation.
type RuleGuidance struct {
	Directive      *model.RefinementDirective
	RejectedReason string
	PriorScore     float64
}

// RuleProducer is the external collaborator that authors matching rules. It
// is opaque and potentially non-deterministic; its output is untrusted input
// requiring full validation before acceptance. Implementations must honor
// context cancellation and deadlines.
type RuleProducer interface {
	ProduceRule(ctx context.Context, brand model.Brand, prior *model.Rule, guidance *RuleGuidance) (*model.Rule, error)
}

// Interpretation is the normalized output of the feedback interpreter.
type Interpretation struct {
	IssueCategory       model.IssueCategory
	Summary             string
	CitedTransactionIDs []model.TransactionID
}

// FeedbackInterpreter is the external collaborator that converts free-text
// feedback into a structured interpretation.
type FeedbackInterpreter interface {
	Interpret(ctx context.Context, rawText string, citedIDs []model.TransactionID) (*Interpretation, error)
}

// FeedbackSource supplies feedback for a brand's persisted result during a
// run. A nil submission means no feedback exists and the result stands.
type FeedbackSource interface {
	Next(ctx context.Context, brandID int64, resultVersion int) (*model.FeedbackSubmission, error)
}

// Storage defines the contract for the engine's persistence layer. Rules,
// results, directives, and iteration states are write-once per version;
// the latest version is authoritative.
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *model.Run) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Rule operations
	SaveRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, brandID int64, version int) (*model.Rule, error)
	GetActiveRule(ctx context.Context, brandID int64) (*model.Rule, error)
	ListRuleVersions(ctx context.Context, brandID int64) ([]model.Rule, error)
	NextRuleVersion(ctx context.Context, brandID int64) (int, error)

	// Match record operations
	SaveMatchRecords(ctx context.Context, runID string, records model.MatchSet) error
	GetMatchHistory(ctx context.Context, brandID int64) ([]model.TransactionID, error)

	// Classification result operations
	SaveResult(ctx context.Context, result *model.ClassificationResult) error
	GetResult(ctx context.Context, runID string, brandID int64, version int) (*model.ClassificationResult, error)
	GetLatestResult(ctx context.Context, brandID int64) (*model.ClassificationResult, error)
	ListResultsByRun(ctx context.Context, runID string) ([]model.ClassificationResult, error)

	// Refinement directive operations
	SaveDirective(ctx context.Context, directive *model.RefinementDirective) error
	GetLatestDirective(ctx context.Context, brandID int64) (*model.RefinementDirective, error)

	// Iteration state operations
	SaveIterationState(ctx context.Context, runID string, state *model.IterationState) error
	GetIterationState(ctx context.Context, runID string, brandID int64) (*model.IterationState, error)
	ListIterationStates(ctx context.Context, runID string) ([]model.IterationState, error)

	// Feedback submission operations
	SaveFeedbackSubmission(ctx context.Context, submission *model.FeedbackSubmission) (int64, error)
	GetPendingFeedback(ctx context.Context, brandID int64) (*model.FeedbackSubmission, int64, error)
	MarkFeedbackConsumed(ctx context.Context, id int64) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for external collaborator calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
