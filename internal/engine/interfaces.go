// Package engine implements the iteration controller and the two-phase run
// orchestrator that drive every brand from rule acquisition through matching,
// confirmation, global tie resolution, persistence, and feedback.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// FeedbackIngestor normalizes a raw feedback submission into a persisted
// refinement directive. A nil directive with a nil error means the submission
// approved the result.
type FeedbackIngestor interface {
	Ingest(ctx context.Context, submission *model.FeedbackSubmission) (*model.RefinementDirective, error)
}

// Deps holds the collaborators a Runner needs. All of them are interfaces so
// tests can substitute deterministic implementations.
type Deps struct {
	Catalog  service.CatalogStore
	Store    service.Storage
	Producer service.RuleProducer
	Ingestor FeedbackIngestor
	Feedback service.FeedbackSource
	Logger   *slog.Logger
}

// Config holds configuration options for a classification run.
type Config struct {
	// RunID identifies the run; a fresh UUID is generated when empty.
	RunID string
	// MaxIterations bounds rule regenerations per brand. Zero or negative is
	// a fatal configuration violation.
	MaxIterations int
	// Workers limits how many brands advance concurrently in phase 1.
	Workers int
	// MatchPartitions shards each brand's matching work.
	MatchPartitions int
	// ProducerTimeout bounds each rule producer call.
	ProducerTimeout time.Duration
	// BrandIDs restricts the run to a subset of catalog brands when non-empty.
	BrandIDs []int64
	// OnProgress, when set, is invoked after each brand settles in a round
	// with the count of terminal brands and the total.
	OnProgress func(terminal, total int)
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   5,
		Workers:         4,
		MatchPartitions: 1,
		ProducerTimeout: 60 * time.Second,
	}
}

// BrandSummary is one brand's final line in the run summary.
type BrandSummary struct {
	BrandName      string
	Status         model.IterationStatus
	UnresolvedTies []model.TransactionID
	BrandID        int64
	Iterations     int
	RuleVersion    int
	ResultVersion  int
	Confirmed      int
	Excluded       int
	TiesResolved   int
}

// Summary is the final accounting of a run. Escalations and unresolved ties
// are always enumerable here, never silently dropped.
type Summary struct {
	RunID  string
	Status model.RunStatus
	Brands []BrandSummary
	Rounds int
}

// Escalated returns the summaries of brands that ended escalated.
func (s *Summary) Escalated() []BrandSummary {
	var out []BrandSummary
	for _, b := range s.Brands {
		if b.Status == model.StatusEscalated {
			out = append(out, b)
		}
	}
	return out
}

// TotalUnresolvedTies counts unresolved tie entries across all brands.
func (s *Summary) TotalUnresolvedTies() int {
	total := 0
	for _, b := range s.Brands {
		total += len(b.UnresolvedTies)
	}
	return total
}
