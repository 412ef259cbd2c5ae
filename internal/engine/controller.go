package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/score"
	"github.com/ledgerline/brandmatch/internal/service"
)

// Controller owns one brand's iteration state for the duration of a run. It
// acquires rules from the producer, enforces the bounded-iteration policy,
// and persists every state transition so interrupted runs remain
// inspectable. A Controller never touches another brand.
type Controller struct {
	brand      model.Brand
	state      *model.IterationState
	categories model.CategoryIndex

	// rule is the brand's current active rule; nil until one is accepted.
	// For brands seen in prior runs it starts as the stored active rule.
	rule       *model.Rule
	directive  *model.RefinementDirective
	priorScore float64

	// lastResult and resultVersion are maintained by the Runner's persist
	// phase; they feed the run summary.
	lastResult    *model.ClassificationResult
	resultVersion int

	runID    string
	producer service.RuleProducer
	ingestor FeedbackIngestor
	store    service.Storage
	scorer   *score.Scorer
	logger   *slog.Logger
	timeout  time.Duration
}

// NewController builds the controller for one brand. The brand's stored
// active rule and latest refinement directive, when present, seed the
// producer guidance so refinement carries across runs.
func NewController(ctx context.Context, runID string, brand model.Brand, categories model.CategoryIndex, cfg Config, deps Deps) (*Controller, error) {
	state, err := model.NewIterationState(brand.ID, cfg.MaxIterations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rule, err := deps.Store.GetActiveRule(ctx, brand.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load active rule for brand %d: %w", brand.ID, err)
	}

	directive, err := deps.Store.GetLatestDirective(ctx, brand.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest directive for brand %d: %w", brand.ID, err)
	}

	return &Controller{
		brand:      brand,
		state:      state,
		categories: categories,
		rule:       rule,
		directive:  directive,
		runID:      runID,
		producer:   deps.Producer,
		ingestor:   deps.Ingestor,
		store:      deps.Store,
		scorer:     score.NewScorer(),
		logger:     logger,
		timeout:    cfg.ProducerTimeout,
	}, nil
}

// Brand returns the brand this controller drives.
func (c *Controller) Brand() model.Brand {
	return c.brand
}

// Rule returns the brand's current active rule, nil when none was accepted.
func (c *Controller) Rule() *model.Rule {
	return c.rule
}

// State returns the brand's iteration state.
func (c *Controller) State() *model.IterationState {
	return c.state
}

// Terminal reports whether the brand reached completed or escalated.
func (c *Controller) Terminal() bool {
	return c.state.Status.Terminal()
}

// NeedsRule reports whether the brand is waiting on rule acquisition.
func (c *Controller) NeedsRule() bool {
	return c.state.Status == model.StatusPending || c.state.Status == model.StatusAwaitingRule
}

// AcquireRule drives the brand from pending or awaiting_rule to matching:
// score the prior rule against the transactions it matched, request a
// candidate from the producer, and accept it only after full validation. A
// syntactically invalid candidate consumes an iteration and re-requests
// immediately; producer failure or an exhausted bound escalates the brand.
// The returned error is reserved for infrastructure failures that must abort
// the run; escalation is a recorded outcome, not an error.
func (c *Controller) AcquireRule(ctx context.Context, priorMatched []model.Transaction) error {
	switch c.state.Status {
	case model.StatusPending:
		if err := c.Transition(ctx, model.StatusEvaluating); err != nil {
			return err
		}
		c.scorePrior(priorMatched)
		if err := c.Transition(ctx, model.StatusAwaitingRule); err != nil {
			return err
		}
	case model.StatusAwaitingRule:
		// Re-entry after a rejected result; rescore the rule that produced it.
		c.scorePrior(priorMatched)
	default:
		return fmt.Errorf("brand %d: rule acquisition is invalid in status %s", c.brand.ID, c.state.Status)
	}

	guidance := &service.RuleGuidance{
		Directive:  c.directive,
		PriorScore: c.priorScore,
	}

	for {
		candidate, err := c.produce(ctx, guidance)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The producer retries transport failures internally, so an
			// error here means its budget is spent.
			return c.escalate(ctx, err)
		}

		if err := c.acceptable(candidate); err != nil {
			c.logger.Warn("Rule candidate rejected",
				"brand_id", c.brand.ID,
				"brand", c.brand.Name,
				"error", err)
			guidance.RejectedReason = err.Error()

			if !c.state.ConsumeIteration() {
				return c.escalate(ctx, common.ErrIterationExhausted)
			}
			// Formal re-request: awaiting_rule to awaiting_rule, persisting
			// the consumed iteration.
			if err := c.Transition(ctx, model.StatusAwaitingRule); err != nil {
				return err
			}
			continue
		}

		return c.accept(ctx, candidate)
	}
}

// produce requests one candidate from the producer under the per-call
// timeout.
func (c *Controller) produce(ctx context.Context, guidance *service.RuleGuidance) (*model.Rule, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.producer.ProduceRule(callCtx, c.brand, c.rule, guidance)
}

// acceptable validates an untrusted producer candidate against the
// activation invariant.
func (c *Controller) acceptable(candidate *model.Rule) error {
	if candidate == nil {
		return fmt.Errorf("%w: producer returned no rule", common.ErrInvalidRule)
	}
	if candidate.BrandID != c.brand.ID {
		return fmt.Errorf("%w: candidate is for brand %d, want %d", common.ErrInvalidRule, candidate.BrandID, c.brand.ID)
	}
	candidate.NormalizeCategorySet()
	if err := candidate.Validate(c.categories); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}
	return nil
}

// accept versions, activates, and stores the validated rule, then moves the
// brand to matching.
func (c *Controller) accept(ctx context.Context, candidate *model.Rule) error {
	version, err := c.store.NextRuleVersion(ctx, c.brand.ID)
	if err != nil {
		return fmt.Errorf("failed to allocate rule version for brand %d: %w", c.brand.ID, err)
	}

	candidate.Version = version
	candidate.Active = true
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now()
	}

	if err := c.store.SaveRule(ctx, candidate); err != nil {
		return fmt.Errorf("failed to save rule v%d for brand %d: %w", version, c.brand.ID, err)
	}

	c.rule = candidate
	c.logger.Info("Rule accepted",
		"brand_id", c.brand.ID,
		"brand", c.brand.Name,
		"rule_version", version,
		"pattern", candidate.Pattern,
		"categories", len(candidate.CategorySet))

	return c.Transition(ctx, model.StatusMatching)
}

// HandleFeedback consumes one feedback submission for the brand's persisted
// result. A nil submission means no feedback exists and the result stands.
// Approvals and advisory feedback complete the brand; only a rejection
// consumes an iteration and reopens rule acquisition.
func (c *Controller) HandleFeedback(ctx context.Context, submission *model.FeedbackSubmission) error {
	if c.state.Status != model.StatusAwaitingFeedback {
		return fmt.Errorf("brand %d: feedback handling is invalid in status %s", c.brand.ID, c.state.Status)
	}

	if submission == nil {
		c.logger.Info("No feedback; result stands",
			"brand_id", c.brand.ID,
			"result_version", c.resultVersion)
		return c.Transition(ctx, model.StatusCompleted)
	}

	directive, err := c.ingestor.Ingest(ctx, submission)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A rejection is honored even when its reasoning cannot be
		// interpreted; the next producer call just goes without a directive.
		c.logger.Warn("Feedback ingestion failed",
			"brand_id", c.brand.ID,
			"type", submission.Type,
			"error", err)
		directive = nil
	}
	if directive != nil {
		c.directive = directive
	}

	if submission.Rejects() {
		if !c.state.ConsumeIteration() {
			return c.escalate(ctx, common.ErrIterationExhausted)
		}
		c.logger.Info("Feedback rejected result; reopening rule acquisition",
			"brand_id", c.brand.ID,
			"result_version", submission.ResultVersion,
			"iteration", c.state.IterationCount,
			"remaining", c.state.Remaining())
		return c.Transition(ctx, model.StatusAwaitingRule)
	}

	return c.Transition(ctx, model.StatusCompleted)
}

// Transition moves the state machine and persists the new state.
func (c *Controller) Transition(ctx context.Context, next model.IterationStatus) error {
	if err := c.state.TransitionTo(next); err != nil {
		return err
	}
	return c.save(ctx)
}

// escalate forces the terminal escalated state, persists it, and records the
// reason. Escalation is per brand; sibling pipelines are unaffected.
func (c *Controller) escalate(ctx context.Context, reason error) error {
	c.state.Escalate()
	c.logger.Warn("Brand escalated",
		"brand_id", c.brand.ID,
		"brand", c.brand.Name,
		"iterations", c.state.IterationCount,
		"reason", reason)
	return c.save(ctx)
}

// scorePrior refreshes the guidance score from the prior rule's matched
// transactions. No prior rule, or no evidence for it, scores zero.
func (c *Controller) scorePrior(priorMatched []model.Transaction) {
	if c.rule == nil {
		c.priorScore = 0
		return
	}
	c.priorScore = c.scorer.Score(c.brand, c.rule, priorMatched, c.categories)
	c.logger.Debug("Prior rule scored",
		"brand_id", c.brand.ID,
		"rule_version", c.rule.Version,
		"score", c.priorScore,
		"matched", len(priorMatched))
}

func (c *Controller) save(ctx context.Context) error {
	if err := c.store.SaveIterationState(ctx, c.runID, c.state); err != nil {
		return fmt.Errorf("failed to save iteration state for brand %d: %w", c.brand.ID, err)
	}
	return nil
}
