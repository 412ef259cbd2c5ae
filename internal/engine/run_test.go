package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/brandmatch/internal/catalog"
	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/feedback"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/storage"
)

// testHarness bundles the collaborators a runner test needs: a real SQLite
// store, a fixture catalog, and scriptable producer and feedback doubles.
type testHarness struct {
	store    *storage.SQLiteStorage
	cat      *catalog.Mock
	producer *MockProducer
	source   *MockFeedbackSource
	deps     Deps
}

func newHarness(t *testing.T, cat *catalog.Mock) *testHarness {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close storage: %v", err)
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := NewMockProducer()
	source := NewMockFeedbackSource()

	return &testHarness{
		store:    store,
		cat:      cat,
		producer: producer,
		source:   source,
		deps: Deps{
			Catalog:  cat,
			Store:    store,
			Producer: producer,
			Ingestor: feedback.NewIngestor(feedback.NewKeywordInterpreter(), store, logger),
			Feedback: source,
			Logger:   logger,
		},
	}
}

func (h *testHarness) run(t *testing.T, cfg Config) *Summary {
	t.Helper()
	runner, err := NewRunnerWithConfig(h.deps, cfg)
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func tid(record string) model.TransactionID {
	return model.TransactionID{RecordID: record, SourceID: "bank-a"}
}

// appleCatalog has one technology brand and a food-sector transaction that
// collides with the brand name's dictionary word.
func appleCatalog() *catalog.Mock {
	cat := catalog.NewMock()
	cat.Brands = []model.Brand{
		{ID: 2, Name: "Apple", Sector: "technology"},
	}
	cat.Categories = []model.Category{
		{ID: 10, Description: "Coffee Shops", Sector: "food"},
		{ID: 30, Description: "Consumer Electronics", Sector: "technology"},
	}
	cat.Transactions = []model.Transaction{
		{ID: tid("r1"), MerchantRef: "apple-store", Narrative: "APPLE STORE R042", CategoryID: 30},
		{ID: tid("r2"), MerchantRef: "farm-stand", Narrative: "APPLE FARM STAND 33", CategoryID: 10},
		{ID: tid("r3"), MerchantRef: "vending", Narrative: "VENDING SVC 0091", CategoryID: 10},
	}
	return cat
}

// shellCatalog has two automotive brands whose patterns overlap on the
// station transaction; the narrower brand should win that tie.
func shellCatalog() *catalog.Mock {
	cat := catalog.NewMock()
	cat.Brands = []model.Brand{
		{ID: 1, Name: "Shell", Sector: "automotive"},
		{ID: 4, Name: "Shell Station", Sector: "automotive"},
	}
	cat.Categories = []model.Category{
		{ID: 20, Description: "Fuel and Service Stations", Sector: "automotive"},
	}
	cat.Transactions = []model.Transaction{
		{ID: tid("r1"), MerchantRef: "shell-oil", Narrative: "SHELL OIL 57442", CategoryID: 20},
		{ID: tid("r2"), MerchantRef: "shell-station", Narrative: "SHELL STATION 4421", CategoryID: 20},
	}
	return cat
}

// acmeCatalog has two food brands with equally generic patterns; their tie
// cannot be resolved with confidence.
func acmeCatalog() *catalog.Mock {
	cat := catalog.NewMock()
	cat.Brands = []model.Brand{
		{ID: 3, Name: "Acme Coffee", Sector: "food"},
		{ID: 6, Name: "Acme Market", Sector: "food"},
	}
	cat.Categories = []model.Category{
		{ID: 10, Description: "Coffee Shops", Sector: "food"},
		{ID: 15, Description: "Supermarkets", Sector: "food"},
	}
	cat.Transactions = []model.Transaction{
		{ID: tid("r1"), MerchantRef: "acme", Narrative: "ACME 0099", CategoryID: 10},
	}
	return cat
}

func brandSummary(t *testing.T, summary *Summary, brandID int64) BrandSummary {
	t.Helper()
	for _, b := range summary.Brands {
		if b.BrandID == brandID {
			return b
		}
	}
	t.Fatalf("brand %d missing from summary", brandID)
	return BrandSummary{}
}

func TestRunner_SingleBrandRunCompletes(t *testing.T) {
	h := newHarness(t, appleCatalog())
	h.producer.QueueRule(2, `APPLE`, 10, 30)

	// The feedback source approves, but first records whether the result it
	// is being asked about is already durable.
	var missing []string
	h.source.NextFn = func(ctx context.Context, brandID int64, version int) (*model.FeedbackSubmission, error) {
		if _, err := h.store.GetResult(ctx, "run-apple", brandID, version); err != nil {
			missing = append(missing, fmt.Sprintf("brand %d v%d: %v", brandID, version, err))
		}
		return &model.FeedbackSubmission{BrandID: brandID, ResultVersion: version, Type: model.FeedbackApprove}, nil
	}

	cfg := DefaultConfig()
	cfg.RunID = "run-apple"
	summary := h.run(t, cfg)

	assert.Empty(t, missing, "feedback was offered before the result was persisted")
	assert.Equal(t, model.RunStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.Rounds)
	assert.Empty(t, summary.Escalated())

	b := brandSummary(t, summary, 2)
	assert.Equal(t, model.StatusCompleted, b.Status)
	assert.Equal(t, 0, b.Iterations)
	assert.Equal(t, 1, b.RuleVersion)
	assert.Equal(t, 1, b.ResultVersion)
	assert.Equal(t, 1, b.Confirmed)
	assert.Equal(t, 1, b.Excluded)

	ctx := context.Background()

	run, err := h.store.GetRun(ctx, "run-apple")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)

	result, err := h.store.GetResult(ctx, "run-apple", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1")}, result.Confirmed)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, tid("r2"), result.Excluded[0].TransactionID)
	assert.Equal(t, model.ReasonGenericWordCollision, result.Excluded[0].Reason)
	assert.Equal(t, 2, result.Stats.TotalMatched)
	assert.InDelta(t, 0.5, result.Stats.ExclusionRate, 0.0001)
	assert.NoError(t, result.Validate(nil))

	history, err := h.store.GetMatchHistory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1"), tid("r2")}, history)

	rules, err := h.store.ListRuleVersions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Active)

	states, err := h.store.ListIterationStates(ctx, "run-apple")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, model.StatusCompleted, states[0].Status)
	assert.Equal(t, 0, states[0].IterationCount)

	// First acquisition takes no guidance and consumes no iteration.
	require.Equal(t, 1, h.producer.CallsFor(2))
	call := h.producer.Calls()[0]
	assert.Nil(t, call.Prior)
	assert.Nil(t, call.Guidance.Directive)
	assert.Zero(t, call.Guidance.PriorScore)
}

func TestRunner_TieResolvedToMoreSpecificBrand(t *testing.T) {
	h := newHarness(t, shellCatalog())
	h.producer.QueueRule(1, `SHELL`, 20)
	h.producer.QueueRule(4, `SHELL\s+STATION`, 20)
	h.source.Approve(1, 1)
	h.source.Approve(4, 1)

	cfg := DefaultConfig()
	cfg.RunID = "run-shell"
	summary := h.run(t, cfg)

	assert.Equal(t, 1, summary.Rounds)
	assert.Zero(t, summary.TotalUnresolvedTies())

	ctx := context.Background()

	broad, err := h.store.GetResult(ctx, "run-shell", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1")}, broad.Confirmed, "loser must drop the tied transaction")
	require.Len(t, broad.TiesResolved, 1)
	assert.Equal(t, int64(4), broad.TiesResolved[0].WinnerBrandID)
	assert.Equal(t, []int64{1}, broad.TiesResolved[0].LoserBrandIDs)
	assert.Equal(t, "scored", broad.TiesResolved[0].Method)
	assert.NotEmpty(t, broad.TiesResolved[0].Justification)

	narrow, err := h.store.GetResult(ctx, "run-shell", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r2")}, narrow.Confirmed, "winner keeps the tied transaction")
	require.Len(t, narrow.TiesResolved, 1)
	assert.Equal(t, narrow.TiesResolved[0], broad.TiesResolved[0], "both competitors record the same outcome")

	assert.Equal(t, 1, brandSummary(t, summary, 1).TiesResolved)
	assert.Equal(t, 1, brandSummary(t, summary, 4).TiesResolved)
}

func TestRunner_UnresolvedTieFlaggedOnEveryCompetitor(t *testing.T) {
	h := newHarness(t, acmeCatalog())
	h.producer.QueueRule(3, `ACME`, 10)
	h.producer.QueueRule(6, `ACME`, 10, 15)
	// No scripted feedback: the results stand.

	cfg := DefaultConfig()
	cfg.RunID = "run-acme"
	summary := h.run(t, cfg)

	assert.Equal(t, 2, summary.TotalUnresolvedTies())

	ctx := context.Background()
	for _, brandID := range []int64{3, 6} {
		result, err := h.store.GetResult(ctx, "run-acme", brandID, 1)
		require.NoError(t, err)
		assert.Empty(t, result.Confirmed, "brand %d must not keep an unresolved tie", brandID)
		assert.Equal(t, []model.TransactionID{tid("r1")}, result.UnresolvedTies)
		assert.Empty(t, result.TiesResolved)

		b := brandSummary(t, summary, brandID)
		assert.Equal(t, model.StatusCompleted, b.Status)
		assert.Equal(t, []model.TransactionID{tid("r1")}, b.UnresolvedTies)
	}
}

func TestRunner_InvalidRuleConsumesIterationsAndEscalates(t *testing.T) {
	h := newHarness(t, appleCatalog())
	// The sticky reply never compiles, so every re-request fails too.
	h.producer.Queue(2, ProducerReply{Rule: &model.Rule{BrandID: 2, Pattern: `[`, CategorySet: []int64{30}, Confidence: 0.9}})

	cfg := DefaultConfig()
	cfg.RunID = "run-invalid"
	cfg.MaxIterations = 2
	summary := h.run(t, cfg)

	assert.Equal(t, model.RunStatusCompleted, summary.Status, "an escalation never fails the run")
	assert.Equal(t, 1, summary.Rounds)

	b := brandSummary(t, summary, 2)
	assert.Equal(t, model.StatusEscalated, b.Status)
	assert.Equal(t, 2, b.Iterations)
	assert.Zero(t, b.RuleVersion)
	require.Len(t, summary.Escalated(), 1)

	// One initial request plus one re-request per permitted iteration.
	assert.Equal(t, 3, h.producer.CallsFor(2))

	// Re-requests carry the rejection reason; the first request carries none.
	calls := h.producer.Calls()
	assert.Empty(t, calls[0].Guidance.RejectedReason)
	assert.Contains(t, calls[1].Guidance.RejectedReason, "does not compile")
	assert.Contains(t, calls[2].Guidance.RejectedReason, "does not compile")

	ctx := context.Background()

	// Invalid candidates are never stored.
	rules, err := h.store.ListRuleVersions(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, rules)

	// The brand still gets an enumerable, empty result.
	result, err := h.store.GetResult(ctx, "run-invalid", 2, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Confirmed)
	assert.Zero(t, result.RuleVersion)

	// Escalated brands are never offered feedback.
	assert.Empty(t, h.source.Calls())
}

func TestRunner_RejectionLoopStopsAtIterationBound(t *testing.T) {
	h := newHarness(t, acmeCatalog())
	h.producer.QueueRule(3, `ACME\s+COFFEE`, 10)
	h.cat.Brands = h.cat.Brands[:1] // Acme Coffee only
	h.source.NextFn = func(_ context.Context, brandID int64, version int) (*model.FeedbackSubmission, error) {
		return &model.FeedbackSubmission{
			BrandID:       brandID,
			ResultVersion: version,
			Type:          model.FeedbackReject,
			Text:          "wrong merchant matched",
		}, nil
	}

	cfg := DefaultConfig()
	cfg.RunID = "run-bound"
	cfg.MaxIterations = 2
	summary := h.run(t, cfg)

	b := brandSummary(t, summary, 3)
	assert.Equal(t, model.StatusEscalated, b.Status)
	assert.Equal(t, 2, b.Iterations)
	assert.Equal(t, 3, summary.Rounds)

	// Initial acquisition plus exactly max_iterations regenerations; the
	// escalation never triggers another producer call.
	assert.Equal(t, 3, h.producer.CallsFor(3))

	// Each regeneration carried the rejection directive as guidance.
	calls := h.producer.Calls()
	assert.Nil(t, calls[0].Guidance.Directive)
	require.NotNil(t, calls[1].Guidance.Directive)
	assert.Equal(t, model.IssuePatternTooBroad, calls[1].Guidance.Directive.IssueCategory)
	require.NotNil(t, calls[2].Guidance.Directive)

	// One result per round, all enumerable.
	results, err := h.store.ListResultsByRun(context.Background(), "run-bound")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRunner_ProducerFailureEscalatesOnlyThatBrand(t *testing.T) {
	h := newHarness(t, shellCatalog())
	h.producer.Queue(1, ProducerReply{Err: errors.New("provider unreachable")})
	h.producer.QueueRule(4, `SHELL\s+STATION`, 20)
	h.source.Approve(4, 1)

	cfg := DefaultConfig()
	cfg.RunID = "run-isolated"
	summary := h.run(t, cfg)

	assert.Equal(t, model.RunStatusCompleted, summary.Status)
	assert.Equal(t, model.StatusEscalated, brandSummary(t, summary, 1).Status)

	healthy := brandSummary(t, summary, 4)
	assert.Equal(t, model.StatusCompleted, healthy.Status)
	assert.Equal(t, 1, healthy.Confirmed)

	result, err := h.store.GetResult(context.Background(), "run-isolated", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r2")}, result.Confirmed)
}

func TestRunner_RejectedBrandRefinesWhileCompletedBrandKeepsRule(t *testing.T) {
	h := newHarness(t, shellCatalog())
	h.producer.QueueRule(1, `SHELL`, 20)
	h.producer.QueueRule(4, `SHELL\s+DEPOT`, 20)
	h.producer.QueueRule(4, `SHELL\s+STATION`, 20)
	h.source.Approve(1, 1)
	h.source.Reject(4, 1, "too narrow, missing the shell station transaction")
	h.source.Approve(4, 2)

	cfg := DefaultConfig()
	cfg.RunID = "run-refine"
	summary := h.run(t, cfg)

	assert.Equal(t, 2, summary.Rounds)

	// The refined brand wins the new tie.
	refined := brandSummary(t, summary, 4)
	assert.Equal(t, model.StatusCompleted, refined.Status)
	assert.Equal(t, 1, refined.Iterations)
	assert.Equal(t, 2, refined.RuleVersion)
	assert.Equal(t, 2, refined.ResultVersion)
	assert.Equal(t, 1, refined.Confirmed)

	// The completed brand kept its frozen rule but its outcome changed when
	// the tie was reassigned, so a fresh result version was persisted.
	frozen := brandSummary(t, summary, 1)
	assert.Equal(t, model.StatusCompleted, frozen.Status)
	assert.Equal(t, 0, frozen.Iterations)
	assert.Equal(t, 1, frozen.RuleVersion)
	assert.Equal(t, 2, frozen.ResultVersion)
	assert.Equal(t, 1, frozen.Confirmed)

	ctx := context.Background()

	v2, err := h.store.GetResult(ctx, "run-refine", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1")}, v2.Confirmed)
	require.Len(t, v2.TiesResolved, 1)
	assert.Equal(t, int64(4), v2.TiesResolved[0].WinnerBrandID)

	// The rejection became a stored directive which guided the regeneration.
	directive, err := h.store.GetLatestDirective(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, model.IssuePatternTooNarrow, directive.IssueCategory)

	require.Equal(t, 2, h.producer.CallsFor(4))
	var second ProducerCall
	for _, call := range h.producer.Calls() {
		if call.Brand.ID == 4 && call.Prior != nil {
			second = call
		}
	}
	require.NotNil(t, second.Prior)
	assert.Equal(t, 1, second.Prior.Version)
	assert.Equal(t, `SHELL\s+DEPOT`, second.Prior.Pattern)
	require.NotNil(t, second.Guidance.Directive)
	assert.Equal(t, model.IssuePatternTooNarrow, second.Guidance.Directive.IssueCategory)

	rules, err := h.store.ListRuleVersions(ctx, 4)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.False(t, rules[0].Active)
	assert.True(t, rules[1].Active)
}

func TestRunner_AdvisoryFeedbackCompletesAndStoresDirective(t *testing.T) {
	h := newHarness(t, appleCatalog())
	h.producer.QueueRule(2, `APPLE`, 10, 30)
	h.source.Submit(2, 1, &model.FeedbackSubmission{
		BrandID:       2,
		ResultVersion: 1,
		Type:          model.FeedbackGeneral,
		Text:          "category selection looks wrong for a few rows",
	})

	cfg := DefaultConfig()
	cfg.RunID = "run-advisory"
	summary := h.run(t, cfg)

	b := brandSummary(t, summary, 2)
	assert.Equal(t, model.StatusCompleted, b.Status, "advisory feedback does not reopen the loop")
	assert.Equal(t, 0, b.Iterations)
	assert.Equal(t, 1, summary.Rounds)

	directive, err := h.store.GetLatestDirective(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.IssueCategoryMismatch, directive.IssueCategory)
	assert.Equal(t, 1, directive.ResultVersion)
}

func TestRunner_DeterministicAcrossIdenticalRuns(t *testing.T) {
	type resultKey struct {
		BrandID int64
		Version int
	}

	capture := func(t *testing.T) map[resultKey]outcomePayload {
		h := newHarness(t, shellCatalog())
		h.producer.QueueRule(1, `SHELL`, 20)
		h.producer.QueueRule(4, `SHELL\s+STATION`, 20)
		h.source.Approve(1, 1)
		h.source.Approve(4, 1)

		cfg := DefaultConfig()
		cfg.RunID = "run-det"
		cfg.Workers = 4
		cfg.MatchPartitions = 3
		h.run(t, cfg)

		results, err := h.store.ListResultsByRun(context.Background(), "run-det")
		require.NoError(t, err)

		out := make(map[resultKey]outcomePayload, len(results))
		for i := range results {
			r := results[i]
			out[resultKey{BrandID: r.BrandID, Version: r.Version}] = payloadOf(&r)
		}
		return out
	}

	first := capture(t)
	second := capture(t)
	assert.Equal(t, first, second, "identical inputs must persist identical results")
}

func TestRunner_SecondRunCarriesPriorRuleAndScore(t *testing.T) {
	h := newHarness(t, appleCatalog())
	h.producer.QueueRule(2, `APPLE`, 10, 30)
	h.source.Approve(2, 1)

	cfg := DefaultConfig()
	cfg.RunID = "run-first"
	h.run(t, cfg)

	h.producer.Reset()
	h.producer.QueueRule(2, `APPLE\s+STORE`, 30)

	cfg.RunID = "run-second"
	summary := h.run(t, cfg)

	b := brandSummary(t, summary, 2)
	assert.Equal(t, model.StatusCompleted, b.Status)
	assert.Equal(t, 2, b.RuleVersion)
	assert.Equal(t, 1, b.ResultVersion, "result versions restart per run")

	// The first producer call of the new run carries the stored rule and its
	// freshly computed confidence score: shape split 0.5, category agreement
	// 0.5, no proxy contamination.
	require.Equal(t, 1, h.producer.CallsFor(2))
	call := h.producer.Calls()[0]
	require.NotNil(t, call.Prior)
	assert.Equal(t, 1, call.Prior.Version)
	assert.Equal(t, `APPLE`, call.Prior.Pattern)
	assert.InDelta(t, 0.625, call.Guidance.PriorScore, 0.0001)

	ctx := context.Background()

	result, err := h.store.GetResult(ctx, "run-second", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1")}, result.Confirmed)
	assert.Equal(t, 2, result.RuleVersion)

	rules, err := h.store.ListRuleVersions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.False(t, rules[0].Active, "accepting v2 deactivates v1")
	assert.True(t, rules[1].Active)
}

func TestRunner_BrandFilterRestrictsRun(t *testing.T) {
	h := newHarness(t, shellCatalog())
	h.producer.QueueRule(1, `SHELL`, 20)
	h.source.Approve(1, 1)

	cfg := DefaultConfig()
	cfg.RunID = "run-filtered"
	cfg.BrandIDs = []int64{1}
	summary := h.run(t, cfg)

	require.Len(t, summary.Brands, 1)
	assert.Equal(t, int64(1), summary.Brands[0].BrandID)
	assert.Zero(t, h.producer.CallsFor(4))

	// Without its competitor in the run there is no tie to lose.
	result, err := h.store.GetResult(context.Background(), "run-filtered", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.TransactionID{tid("r1"), tid("r2")}, result.Confirmed)
}

func TestRunner_UnknownBrandFilterIsConfigError(t *testing.T) {
	h := newHarness(t, shellCatalog())

	cfg := DefaultConfig()
	cfg.BrandIDs = []int64{99}
	runner, err := NewRunnerWithConfig(h.deps, cfg)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "brand 99")
}

func TestRunner_CatalogFailureIsFatal(t *testing.T) {
	h := newHarness(t, appleCatalog())
	h.cat.GetBrandsFn = func(context.Context) ([]model.Brand, error) {
		return nil, errors.New("catalog store unavailable")
	}

	runner, err := NewRunnerWithConfig(h.deps, DefaultConfig())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRunFatal)
}

func TestNewRunnerWithConfig_Validation(t *testing.T) {
	h := newHarness(t, appleCatalog())

	tests := []struct {
		mutate  func(*Deps, *Config)
		name    string
		wantErr string
	}{
		{
			name:    "zero max iterations",
			mutate:  func(_ *Deps, cfg *Config) { cfg.MaxIterations = 0 },
			wantErr: "max iterations",
		},
		{
			name:    "negative max iterations",
			mutate:  func(_ *Deps, cfg *Config) { cfg.MaxIterations = -1 },
			wantErr: "max iterations",
		},
		{
			name:    "missing store",
			mutate:  func(deps *Deps, _ *Config) { deps.Store = nil },
			wantErr: "required",
		},
		{
			name:    "missing producer",
			mutate:  func(deps *Deps, _ *Config) { deps.Producer = nil },
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := h.deps
			cfg := DefaultConfig()
			tt.mutate(&deps, &cfg)

			_, err := NewRunnerWithConfig(deps, cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
