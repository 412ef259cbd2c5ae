// Package match implements the matching engine: a pure, deterministic
// evaluation of every brand's active rule against every transaction.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/brandmatch/internal/model"
)

// RuleError reports a brand whose rule was rejected before matching began.
type RuleError struct {
	Err         error
	BrandID     int64
	RuleVersion int
}

func (e RuleError) Error() string {
	return fmt.Sprintf("brand %d rule v%d rejected: %v", e.BrandID, e.RuleVersion, e.Err)
}

func (e RuleError) Unwrap() error {
	return e.Err
}

// Matcher evaluates transactions against a fixed set of pre-compiled brand
// rules. Once constructed, matching is 100% reproducible: identical
// transaction inputs always produce an identical match set regardless of
// invocation count or partitioning.
type Matcher struct {
	compiled   map[int64]*regexp.Regexp
	categories model.CategoryIndex
	logger     *slog.Logger
	rules      []model.Rule
}

// NewMatcher compiles the given rules. A rule whose pattern does not compile
// is rejected and reported; the remaining brands still match. Patterns are
// validated once here, never per-transaction.
func NewMatcher(rules []model.Rule, categories model.CategoryIndex, logger *slog.Logger) (*Matcher, []RuleError) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Matcher{
		compiled:   make(map[int64]*regexp.Regexp, len(rules)),
		categories: categories,
		logger:     logger,
	}

	var rejected []RuleError
	for _, rule := range rules {
		re, err := rule.Compile()
		if err != nil {
			rejected = append(rejected, RuleError{BrandID: rule.BrandID, RuleVersion: rule.Version, Err: err})
			continue
		}
		m.compiled[rule.BrandID] = re
		m.rules = append(m.rules, rule)
	}

	// Brand order is fixed up front so evaluation order never depends on
	// caller input order.
	sort.Slice(m.rules, func(i, j int) bool { return m.rules[i].BrandID < m.rules[j].BrandID })

	return m, rejected
}

// Rules returns the accepted rules in brand order.
func (m *Matcher) Rules() []model.Rule {
	return m.rules
}

// Match evaluates every transaction against every accepted rule. A
// transaction matches a brand iff the rule's pattern matches the narrative
// and the transaction's category id is in the rule's category set. Unknown
// category ids fail the category gate and are logged once per call as a
// data-quality signal, never as a match failure.
func (m *Matcher) Match(ctx context.Context, txns []model.Transaction) (model.MatchSet, error) {
	set, unknown, err := m.matchSlice(ctx, txns)
	if err != nil {
		return nil, err
	}

	m.logUnknownCategories(unknown)
	set.Sort()
	return set, nil
}

// MatchPartitioned shards the transactions across n workers and merges the
// per-shard results. The merged set is identical to a sequential Match over
// the same input.
func (m *Matcher) MatchPartitioned(ctx context.Context, txns []model.Transaction, partitions int) (model.MatchSet, error) {
	if partitions <= 1 || len(txns) <= partitions {
		return m.Match(ctx, txns)
	}

	shards := make([]model.MatchSet, partitions)
	unknowns := make([]map[int64]int, partitions)
	size := (len(txns) + partitions - 1) / partitions

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < partitions; i++ {
		lo := i * size
		hi := lo + size
		if lo >= len(txns) {
			break
		}
		if hi > len(txns) {
			hi = len(txns)
		}

		g.Go(func() error {
			set, unknown, err := m.matchSlice(gctx, txns[lo:hi])
			if err != nil {
				return err
			}
			shards[i] = set
			unknowns[i] = unknown
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged model.MatchSet
	unknown := make(map[int64]int)
	for i := range shards {
		merged = append(merged, shards[i]...)
		for id, n := range unknowns[i] {
			unknown[id] += n
		}
	}

	m.logUnknownCategories(unknown)
	merged.Sort()
	return merged, nil
}

// matchSlice is the sequential core shared by both entry points. It returns
// the raw (unsorted) matches plus a tally of unknown category ids seen.
func (m *Matcher) matchSlice(ctx context.Context, txns []model.Transaction) (model.MatchSet, map[int64]int, error) {
	var set model.MatchSet
	unknown := make(map[int64]int)

	for i, txn := range txns {
		// Matching itself never blocks; honor cancellation between rows.
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}
		}

		if _, known := m.categories[txn.CategoryID]; !known {
			unknown[txn.CategoryID]++
			continue
		}

		for _, rule := range m.rules {
			if !rule.AllowsCategory(txn.CategoryID) {
				continue
			}
			if !m.compiled[rule.BrandID].MatchString(txn.Narrative) {
				continue
			}
			set = append(set, model.MatchRecord{
				TransactionID: txn.ID,
				BrandID:       rule.BrandID,
				RuleVersion:   rule.Version,
			})
		}
	}

	return set, unknown, nil
}

func (m *Matcher) logUnknownCategories(unknown map[int64]int) {
	if len(unknown) == 0 {
		return
	}

	total := 0
	ids := make([]int64, 0, len(unknown))
	for id, n := range unknown {
		total += n
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	m.logger.Warn("Transactions reference unknown categories",
		"transactions", total,
		"category_ids", ids)
}
