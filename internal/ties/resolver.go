// Package ties implements the tie resolver: scoring of transactions matched
// by two or more brands and assignment of a single winner when the evidence
// clears the confidence threshold. Ambiguous ties are flagged for manual
// resolution, never guessed.
package ties

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
)

// ErrNotATie is returned when fewer than two distinct candidates are
// supplied. Calling the resolver with a singleton or empty candidate set is
// a caller contract violation, not a resolvable input.
var ErrNotATie = errors.New("tie resolution requires at least two distinct candidates")

// Scoring weights and decision thresholds. The threshold and margin encode
// the flag-don't-guess policy: an ambiguous tie is a first-class outcome.
const (
	weightSpecificity = 0.45
	weightAlignment   = 0.25
	weightOverlap     = 0.30

	confidenceThreshold = 0.80
	decisionMargin      = 0.10
)

// Candidate pairs a brand with the active rule that matched the transaction.
type Candidate struct {
	Rule  *model.Rule
	Brand model.Brand
}

// Resolver scores tie candidates and decides single-brand assignments. It is
// stateless and safe for concurrent use.
type Resolver struct{}

// NewResolver returns a tie resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// score is one candidate's decomposed confidence.
type score struct {
	brandID     int64
	brandName   string
	specificity float64
	alignment   float64
	overlap     float64
	total       float64
}

// Resolve scores each candidate brand for the transaction and returns the
// outcome: a single winner when the top score clears the threshold and the
// margin over the runner-up, or an unresolved tie otherwise. The outcome
// always names every losing candidate so results can record the full
// competition.
func (r *Resolver) Resolve(txn model.Transaction, candidates []Candidate) (model.TieOutcome, error) {
	if len(candidates) < 2 {
		return model.TieOutcome{}, fmt.Errorf("%w: got %d", ErrNotATie, len(candidates))
	}
	seen := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		if c.Rule == nil {
			return model.TieOutcome{}, fmt.Errorf("candidate brand %d has no rule", c.Brand.ID)
		}
		if seen[c.Brand.ID] {
			return model.TieOutcome{}, fmt.Errorf("%w: brand %d appears twice", ErrNotATie, c.Brand.ID)
		}
		seen[c.Brand.ID] = true
	}

	scores, err := r.scoreAll(txn, candidates)
	if err != nil {
		return model.TieOutcome{}, err
	}

	return decide(txn.ID, scores), nil
}

// scoreAll computes the weighted confidence of every candidate.
func (r *Resolver) scoreAll(txn model.Transaction, candidates []Candidate) ([]score, error) {
	specificity, err := specificityScores(candidates)
	if err != nil {
		return nil, err
	}
	alignment := alignmentScores(txn.CategoryID, candidates)
	narrative := common.TokenSet(txn.Narrative)

	scores := make([]score, len(candidates))
	for i, c := range candidates {
		s := score{
			brandID:     c.Brand.ID,
			brandName:   c.Brand.Name,
			specificity: specificity[i],
			alignment:   alignment[i],
			overlap:     overlapScore(narrative, c),
		}
		s.total = weightSpecificity*s.specificity +
			weightAlignment*s.alignment +
			weightOverlap*s.overlap
		scores[i] = s
	}
	return scores, nil
}

// specificityScores runs the pairwise strict-generalization test. Candidate
// A strictly generalizes candidate B when A's compiled pattern matches B's
// literal core but B's pattern does not match A's. A candidate strictly more
// specific than k rivals scores (1+k)/n, so dominating nobody scores lowest
// and dominating everyone scores 1.
func specificityScores(candidates []Candidate) ([]float64, error) {
	n := len(candidates)
	compiled := make([]*regexp.Regexp, n)
	cores := make([]string, n)
	for i, c := range candidates {
		re, err := c.Rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("candidate brand %d rule v%d: %w", c.Brand.ID, c.Rule.Version, err)
		}
		compiled[i] = re
		cores[i] = common.LiteralCore(c.Rule.Pattern)
	}

	moreSpecific := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			// j strictly generalizes i: j's pattern covers i's literal core
			// while i's pattern does not cover j's.
			if cores[i] != "" && compiled[j].MatchString(cores[i]) &&
				!(cores[j] != "" && compiled[i].MatchString(cores[j])) {
				moreSpecific[i]++
			}
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = float64(1+moreSpecific[i]) / float64(n)
	}
	return scores, nil
}

// alignmentScores rewards the candidate whose category set most narrowly
// contains the transaction's category. Raw score is 1/|set| for containing
// sets and 0 otherwise, normalized by the maximum so the narrowest
// containing candidate scores 1.
func alignmentScores(categoryID int64, candidates []Candidate) []float64 {
	raw := make([]float64, len(candidates))
	max := 0.0
	for i, c := range candidates {
		if c.Rule.AllowsCategory(categoryID) && len(c.Rule.CategorySet) > 0 {
			raw[i] = 1.0 / float64(len(c.Rule.CategorySet))
		}
		if raw[i] > max {
			max = raw[i]
		}
	}
	if max == 0 {
		return raw
	}
	for i := range raw {
		raw[i] /= max
	}
	return raw
}

// overlapScore measures the lexical similarity between the narrative and the
// candidate's identifying text (brand name plus the rule's literal core) as
// the fraction of identifying tokens present in the narrative.
func overlapScore(narrative map[string]bool, c Candidate) float64 {
	evidence := common.TokenSet(c.Brand.Name + " " + common.LiteralCore(c.Rule.Pattern))
	if len(evidence) == 0 {
		return 0
	}
	hits := 0
	for t := range evidence {
		if narrative[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(evidence))
}

// decide applies the threshold-and-margin policy to the scored candidates.
func decide(txnID model.TransactionID, scores []score) model.TieOutcome {
	ranked := make([]score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].brandID < ranked[j].brandID
	})

	top, second := ranked[0], ranked[1]
	outcome := model.TieOutcome{
		TransactionID: txnID,
		Confidence:    top.total,
	}

	if top.total >= confidenceThreshold && top.total-second.total >= decisionMargin {
		outcome.WinnerBrandID = top.brandID
		outcome.Method = "scored"
		for _, s := range ranked[1:] {
			outcome.LoserBrandIDs = append(outcome.LoserBrandIDs, s.brandID)
		}
		outcome.Justification = fmt.Sprintf(
			"%s (brand %d) wins at %.2f (specificity %.2f, category alignment %.2f, narrative overlap %.2f); runner-up %s (brand %d) at %.2f",
			top.brandName, top.brandID, top.total, top.specificity, top.alignment, top.overlap,
			second.brandName, second.brandID, second.total)
		return outcome
	}

	outcome.Method = "unresolved"
	names := make([]string, len(ranked))
	for i, s := range ranked {
		names[i] = fmt.Sprintf("%s (brand %d) %.2f", s.brandName, s.brandID, s.total)
	}
	outcome.Justification = fmt.Sprintf(
		"no candidate clears threshold %.2f with margin %.2f: %s",
		confidenceThreshold, decisionMargin, strings.Join(names, ", "))
	return outcome
}
