package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/brandmatch/internal/catalog"
	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/confirm"
	"github.com/ledgerline/brandmatch/internal/match"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/ties"
)

// Runner drives a full classification run: all brands advance in parallel
// through rule acquisition, matching, and confirmation, then meet at a
// barrier for global tie resolution, then results persist and feedback is
// collected. Rounds repeat until every brand is terminal.
type Runner struct {
	deps     Deps
	cfg      Config
	filter   *confirm.Filter
	resolver *ties.Resolver
	logger   *slog.Logger
}

// NewRunner creates a runner with the default configuration.
func NewRunner(deps Deps) (*Runner, error) {
	return NewRunnerWithConfig(deps, DefaultConfig())
}

// NewRunnerWithConfig creates a runner with a custom configuration. A
// non-positive iteration bound is a fatal configuration violation.
func NewRunnerWithConfig(deps Deps, cfg Config) (*Runner, error) {
	if deps.Catalog == nil || deps.Store == nil || deps.Producer == nil || deps.Ingestor == nil {
		return nil, fmt.Errorf("%w: catalog, store, producer, and ingestor are required", common.ErrInvalidConfig)
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations must be positive, got %d", common.ErrInvalidConfig, cfg.MaxIterations)
	}

	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.MatchPartitions <= 0 {
		cfg.MatchPartitions = defaults.MatchPartitions
	}
	if cfg.ProducerTimeout <= 0 {
		cfg.ProducerTimeout = defaults.ProducerTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		deps:     deps,
		cfg:      cfg,
		filter:   confirm.NewFilter(),
		resolver: ties.NewResolver(),
		logger:   logger,
	}, nil
}

// brandWork is one brand's phase 1 output for a round, later adjusted by tie
// resolution.
type brandWork struct {
	set        model.MatchSet
	matched    []model.Transaction
	confirmed  []model.TransactionID
	excluded   []model.Exclusion
	ties       []model.TieOutcome
	unresolved []model.TransactionID
}

// Run executes the classification run and returns its summary. Catalog
// unavailability and configuration violations are fatal; everything that
// goes wrong for a single brand escalates that brand and leaves its
// siblings untouched.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	snap, err := catalog.Load(ctx, r.deps.Catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRunFatal, err)
	}

	report := snap.Validate()
	r.logger.Info("Catalog snapshot loaded",
		"run_id", runID,
		"brands", report.Brands,
		"categories", report.Categories,
		"transactions", report.Transactions)
	if !report.Clean() {
		r.logger.Warn("Catalog carries dangling references; offending fields are ignored for matching",
			"unknown_category_refs", report.UnknownCategoryRefs,
			"unknown_brand_refs", report.UnknownBrandRefs,
			"sample_category_ids", report.SampleUnknownCategoryIDs)
	}

	brands, err := selectBrands(snap.Brands, r.cfg.BrandIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	run := &model.Run{
		ID:            runID,
		Status:        model.RunStatusRunning,
		MaxIterations: r.cfg.MaxIterations,
		StartedAt:     time.Now(),
	}
	if err := r.deps.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	ctrls := make([]*Controller, 0, len(brands))
	for _, brand := range brands {
		ctrl, err := NewController(ctx, runID, brand, snap.Categories, r.cfg, r.deps)
		if err != nil {
			r.fail(ctx, runID)
			return nil, err
		}
		if err := ctrl.save(ctx); err != nil {
			r.fail(ctx, runID)
			return nil, err
		}
		ctrls = append(ctrls, ctrl)
	}

	txnByKey := make(map[string]model.Transaction, len(snap.Transactions))
	for _, txn := range snap.Transactions {
		txnByKey[txn.ID.Key()] = txn
	}

	r.logger.Info("Run started",
		"run_id", runID,
		"brands", len(ctrls),
		"transactions", len(snap.Transactions),
		"max_iterations", r.cfg.MaxIterations,
		"workers", r.cfg.Workers)

	prevMatched := make([][]model.Transaction, len(ctrls))
	rounds := 0
	for {
		rounds++

		work, err := r.matchAndConfirm(ctx, ctrls, snap, txnByKey, prevMatched)
		if err != nil {
			r.fail(ctx, runID)
			return nil, err
		}

		// Barrier: every brand's confirmation is done before any tie is
		// examined.
		r.resolveTies(work, ctrls, txnByKey)

		if err := r.persistRound(ctx, runID, ctrls, work); err != nil {
			r.fail(ctx, runID)
			return nil, err
		}

		for i, w := range work {
			prevMatched[i] = w.matched
		}

		done, err := r.collectFeedback(ctx, ctrls)
		if err != nil {
			r.fail(ctx, runID)
			return nil, err
		}
		if done {
			break
		}
	}

	if err := r.deps.Store.CompleteRun(ctx, runID, model.RunStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}

	summary := buildSummary(runID, model.RunStatusCompleted, rounds, ctrls)
	r.logger.Info("Run completed",
		"run_id", runID,
		"rounds", rounds,
		"brands", len(summary.Brands),
		"escalated", len(summary.Escalated()),
		"unresolved_ties", summary.TotalUnresolvedTies())
	return summary, nil
}

// matchAndConfirm is phase 1: brands advance concurrently through rule
// acquisition, matching, and confirmation. The returned slice is indexed
// like ctrls. An error aborts the run; per-brand trouble is settled inside
// advanceBrand by escalating just that brand.
func (r *Runner) matchAndConfirm(ctx context.Context, ctrls []*Controller, snap *catalog.Snapshot, txnByKey map[string]model.Transaction, prevMatched [][]model.Transaction) ([]*brandWork, error) {
	work := make([]*brandWork, len(ctrls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, ctrl := range ctrls {
		g.Go(func() error {
			w, err := r.advanceBrand(gctx, ctrl, snap, txnByKey, prevMatched[i])
			if err != nil {
				return err
			}
			work[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return work, nil
}

// advanceBrand moves one brand through its phase 1 pipeline. Terminal brands
// keep their last valid rule and still match and confirm so later rounds'
// tie resolution stays fair; their state machine is never touched again.
func (r *Runner) advanceBrand(ctx context.Context, ctrl *Controller, snap *catalog.Snapshot, txnByKey map[string]model.Transaction, priorMatched []model.Transaction) (*brandWork, error) {
	if !ctrl.Terminal() && ctrl.NeedsRule() {
		prior := priorMatched
		if prior == nil && ctrl.Rule() != nil {
			// A rule carried over from a prior run has no matched set in
			// this run yet; evaluate it so its score can guide the producer.
			matched, _, err := r.matchBrand(ctx, *ctrl.Rule(), snap, txnByKey)
			if err != nil {
				var ruleErr match.RuleError
				if !errors.As(err, &ruleErr) {
					return nil, err
				}
				r.logger.Warn("Stored rule no longer compiles; scoring without it",
					"brand_id", ctrl.Brand().ID,
					"rule_version", ctrl.Rule().Version,
					"error", err)
			}
			prior = matched
		}
		if err := ctrl.AcquireRule(ctx, prior); err != nil {
			return nil, err
		}
	}

	rule := ctrl.Rule()
	if rule == nil {
		// Escalated before any rule was accepted; nothing to match.
		return &brandWork{}, nil
	}

	matched, set, err := r.matchBrand(ctx, *rule, snap, txnByKey)
	if err != nil {
		var ruleErr match.RuleError
		if !errors.As(err, &ruleErr) {
			return nil, err
		}
		// Rules are validated at acceptance, so a rejected active rule is a
		// prior-run anomaly. It costs this brand only.
		r.logger.Error("Active rule rejected by matcher",
			"brand_id", ctrl.Brand().ID,
			"rule_version", rule.Version,
			"error", err)
		if !ctrl.Terminal() {
			if err := ctrl.escalate(ctx, err); err != nil {
				return nil, err
			}
		}
		return &brandWork{}, nil
	}

	if !ctrl.Terminal() {
		if err := ctrl.Transition(ctx, model.StatusConfirming); err != nil {
			return nil, err
		}
	}

	confirmed, excluded := r.filter.Confirm(ctrl.Brand(), rule, matched, snap.Categories)

	if !ctrl.Terminal() {
		if err := ctrl.Transition(ctx, model.StatusResolvingTies); err != nil {
			return nil, err
		}
	}

	return &brandWork{set: set, matched: matched, confirmed: confirmed, excluded: excluded}, nil
}

// matchBrand evaluates one rule over the whole snapshot and resolves the
// matched transaction records back to transactions.
func (r *Runner) matchBrand(ctx context.Context, rule model.Rule, snap *catalog.Snapshot, txnByKey map[string]model.Transaction) ([]model.Transaction, model.MatchSet, error) {
	matcher, rejected := match.NewMatcher([]model.Rule{rule}, snap.Categories, r.logger)
	if len(rejected) > 0 {
		return nil, nil, rejected[0]
	}

	set, err := matcher.MatchPartitioned(ctx, snap.Transactions, r.cfg.MatchPartitions)
	if err != nil {
		return nil, nil, err
	}

	matched := make([]model.Transaction, 0, len(set))
	for _, rec := range set {
		matched = append(matched, txnByKey[rec.TransactionID.Key()])
	}
	return matched, set, nil
}

// resolveTies is phase 2: transactions confirmed by two or more brands go to
// the resolver, globally and in canonical transaction order. The winner
// keeps the transaction and every loser drops it; a tie nobody wins with
// enough confidence is pulled from every competitor and flagged for manual
// resolution. Resolver failures are never guessed around.
func (r *Runner) resolveTies(work []*brandWork, ctrls []*Controller, txnByKey map[string]model.Transaction) {
	claims := make(map[string][]int)
	for i, w := range work {
		for _, id := range w.confirmed {
			claims[id.Key()] = append(claims[id.Key()], i)
		}
	}

	keys := make([]string, 0, len(claims))
	for key, idxs := range claims {
		if len(idxs) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	drop := make([]map[string]bool, len(work))
	for i := range drop {
		drop[i] = make(map[string]bool)
	}

	for _, key := range keys {
		idxs := claims[key]
		txn := txnByKey[key]

		candidates := make([]ties.Candidate, 0, len(idxs))
		for _, i := range idxs {
			candidates = append(candidates, ties.Candidate{Brand: ctrls[i].Brand(), Rule: ctrls[i].Rule()})
		}

		outcome, err := r.resolver.Resolve(txn, candidates)
		if err != nil {
			r.logger.Warn("Tie resolution failed; flagged for manual resolution",
				"transaction", key,
				"candidates", len(candidates),
				"error", err)
			outcome = model.TieOutcome{TransactionID: txn.ID}
		}

		if outcome.Resolved() {
			r.logger.Info("Tie resolved",
				"transaction", key,
				"winner_brand_id", outcome.WinnerBrandID,
				"confidence", outcome.Confidence,
				"justification", outcome.Justification)
			for _, i := range idxs {
				work[i].ties = append(work[i].ties, outcome)
				if ctrls[i].Brand().ID != outcome.WinnerBrandID {
					drop[i][key] = true
				}
			}
			continue
		}

		r.logger.Warn("Tie unresolved",
			"transaction", key,
			"candidates", len(candidates),
			"justification", outcome.Justification)
		for _, i := range idxs {
			work[i].unresolved = append(work[i].unresolved, txn.ID)
			drop[i][key] = true
		}
	}

	for i, w := range work {
		if len(drop[i]) == 0 {
			continue
		}
		kept := w.confirmed[:0]
		for _, id := range w.confirmed {
			if !drop[i][id.Key()] {
				kept = append(kept, id)
			}
		}
		w.confirmed = kept
	}
}

// persistRound stores one result per brand in brand order. Terminal brands
// re-persist only when tie resolution changed their outcome. Every
// non-terminal brand's result is durable before feedback is solicited.
func (r *Runner) persistRound(ctx context.Context, runID string, ctrls []*Controller, work []*brandWork) error {
	for i, ctrl := range ctrls {
		w := work[i]

		result := &model.ClassificationResult{
			RunID:          runID,
			BrandID:        ctrl.Brand().ID,
			Confirmed:      w.confirmed,
			Excluded:       w.excluded,
			TiesResolved:   w.ties,
			UnresolvedTies: w.unresolved,
			Stats:          model.ComputeStats(len(w.matched), len(w.confirmed), len(w.excluded)),
			CreatedAt:      time.Now(),
		}
		if rule := ctrl.Rule(); rule != nil {
			result.RuleVersion = rule.Version
		}

		if ctrl.Terminal() && sameOutcome(ctrl.lastResult, result) {
			continue
		}

		ctrl.resultVersion++
		result.Version = ctrl.resultVersion

		if err := r.deps.Store.SaveResult(ctx, result); err != nil {
			return fmt.Errorf("failed to save result v%d for brand %d: %w", result.Version, result.BrandID, err)
		}
		if len(w.set) > 0 {
			if err := r.deps.Store.SaveMatchRecords(ctx, runID, w.set); err != nil {
				return fmt.Errorf("failed to save match records for brand %d: %w", result.BrandID, err)
			}
		}
		ctrl.lastResult = result

		if !ctrl.Terminal() {
			if err := ctrl.Transition(ctx, model.StatusAwaitingFeedback); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectFeedback is phase 3: each non-terminal brand's persisted result is
// offered to the feedback source and the response applied. Returns true when
// every brand is terminal. A missing or failing source means the result
// stands.
func (r *Runner) collectFeedback(ctx context.Context, ctrls []*Controller) (bool, error) {
	terminal := 0
	for _, ctrl := range ctrls {
		if ctrl.Terminal() {
			terminal++
			r.progress(terminal, len(ctrls))
			continue
		}

		var submission *model.FeedbackSubmission
		if r.deps.Feedback != nil {
			var err error
			submission, err = r.deps.Feedback.Next(ctx, ctrl.Brand().ID, ctrl.resultVersion)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				r.logger.Warn("Feedback source failed; result stands",
					"brand_id", ctrl.Brand().ID,
					"error", err)
				submission = nil
			}
		}

		if err := ctrl.HandleFeedback(ctx, submission); err != nil {
			return false, err
		}
		if ctrl.Terminal() {
			terminal++
		}
		r.progress(terminal, len(ctrls))
	}
	return terminal == len(ctrls), nil
}

func (r *Runner) progress(terminal, total int) {
	if r.cfg.OnProgress != nil {
		r.cfg.OnProgress(terminal, total)
	}
}

// fail marks the run failed. The write uses a detached context so the status
// lands even when the run itself was canceled.
func (r *Runner) fail(ctx context.Context, runID string) {
	if err := r.deps.Store.CompleteRun(context.WithoutCancel(ctx), runID, model.RunStatusFailed); err != nil {
		r.logger.Error("Failed to mark run failed", "run_id", runID, "error", err)
	}
}

// selectBrands resolves the configured brand filter against the catalog. An
// unknown id is a configuration violation; an empty filter selects every
// brand. The result is in ascending id order so processing order never
// depends on store order.
func selectBrands(all []model.Brand, ids []int64) ([]model.Brand, error) {
	selected := make([]model.Brand, 0, len(all))
	if len(ids) == 0 {
		selected = append(selected, all...)
	} else {
		byID := make(map[int64]model.Brand, len(all))
		for _, b := range all {
			byID[b.ID] = b
		}
		seen := make(map[int64]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			b, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("brand %d is not in the catalog", id)
			}
			selected = append(selected, b)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected, nil
}

func buildSummary(runID string, status model.RunStatus, rounds int, ctrls []*Controller) *Summary {
	summary := &Summary{
		RunID:  runID,
		Status: status,
		Rounds: rounds,
		Brands: make([]BrandSummary, 0, len(ctrls)),
	}
	for _, ctrl := range ctrls {
		b := BrandSummary{
			BrandID:       ctrl.brand.ID,
			BrandName:     ctrl.brand.Name,
			Status:        ctrl.state.Status,
			Iterations:    ctrl.state.IterationCount,
			ResultVersion: ctrl.resultVersion,
		}
		if ctrl.rule != nil {
			b.RuleVersion = ctrl.rule.Version
		}
		if ctrl.lastResult != nil {
			b.Confirmed = len(ctrl.lastResult.Confirmed)
			b.Excluded = len(ctrl.lastResult.Excluded)
			b.TiesResolved = len(ctrl.lastResult.TiesResolved)
			b.UnresolvedTies = ctrl.lastResult.UnresolvedTies
		}
		summary.Brands = append(summary.Brands, b)
	}
	return summary
}

// outcomePayload is the semantic content of a result, compared to detect
// rounds that changed nothing for a terminal brand.
type outcomePayload struct {
	Confirmed      []model.TransactionID `json:"confirmed"`
	Excluded       []model.Exclusion     `json:"excluded"`
	TiesResolved   []model.TieOutcome    `json:"ties_resolved"`
	UnresolvedTies []model.TransactionID `json:"unresolved_ties"`
	Stats          model.ResultStats     `json:"stats"`
	RuleVersion    int                   `json:"rule_version"`
}

func sameOutcome(prev, next *model.ClassificationResult) bool {
	if prev == nil || next == nil {
		return false
	}
	a, errA := json.Marshal(payloadOf(prev))
	b, errB := json.Marshal(payloadOf(next))
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func payloadOf(r *model.ClassificationResult) outcomePayload {
	return outcomePayload{
		Confirmed:      r.Confirmed,
		Excluded:       r.Excluded,
		TiesResolved:   r.TiesResolved,
		UnresolvedTies: r.UnresolvedTies,
		Stats:          r.Stats,
		RuleVersion:    r.RuleVersion,
	}
}
