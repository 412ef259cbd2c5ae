// Package score computes rule quality scores from the transactions a rule
// currently matches. Scores feed the iteration controller's guidance to the
// rule producer; they are advisory, never gating.
package score

import (
	"strings"
	"unicode"

	"github.com/ledgerline/brandmatch/internal/model"
)

// Weights combines the three sub-scores into one confidence value. The
// defaults are fixed for the whole system so scores stay comparable across
// brands and runs.
type Weights struct {
	NarrativeConsistency float64
	CategoryConsistency  float64
	ProxyCleanliness     float64
}

// DefaultWeights is the documented weighting: narrative shape consistency
// carries the most signal, category-sector agreement next, proxy
// contamination the remainder.
var DefaultWeights = Weights{
	NarrativeConsistency: 0.40,
	CategoryConsistency:  0.35,
	ProxyCleanliness:     0.25,
}

// Scorer computes a 0.0–1.0 quality score for a brand's rule. It is a pure
// function of its inputs: no side effects, no external calls, and identical
// inputs always yield the identical score.
type Scorer struct {
	weights Weights
}

// NewScorer returns a scorer with the default weights.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights}
}

// Score rates the rule against the transactions it matched. An empty match
// set scores 0.0; degraded inputs degrade the score, they never error.
func (s *Scorer) Score(brand model.Brand, _ *model.Rule, matched []model.Transaction, categories model.CategoryIndex) float64 {
	if len(matched) == 0 {
		return 0.0
	}

	narrative := s.narrativeConsistency(matched)
	category := s.categoryConsistency(brand, matched, categories)
	proxy := s.proxyCleanliness(matched)

	return s.weights.NarrativeConsistency*narrative +
		s.weights.CategoryConsistency*category +
		s.weights.ProxyCleanliness*proxy
}

// narrativeConsistency measures how concentrated the matched narrative
// shapes are. A rule matching one merchant produces near-identical shapes;
// a too-broad rule matches many shapes. The concentration is the sum of
// squared shape frequencies, which is 1.0 when every narrative collapses to
// the same shape and approaches 0 as shapes diversify.
func (s *Scorer) narrativeConsistency(matched []model.Transaction) float64 {
	shapes := make(map[string]int, len(matched))
	for _, txn := range matched {
		shapes[NarrativeShape(txn.Narrative)]++
	}

	n := float64(len(matched))
	var concentration float64
	for _, count := range shapes {
		frac := float64(count) / n
		concentration += frac * frac
	}
	return concentration
}

// categoryConsistency is the fraction of matches whose category sector
// agrees with the brand's sector. Unknown category ids count as
// inconsistent.
func (s *Scorer) categoryConsistency(brand model.Brand, matched []model.Transaction, categories model.CategoryIndex) float64 {
	if len(matched) == 0 {
		return 0.0
	}

	consistent := 0
	for _, txn := range matched {
		sector := categories.Sector(txn.CategoryID)
		if sector != "" && strings.EqualFold(sector, brand.Sector) {
			consistent++
		}
	}
	return float64(consistent) / float64(len(matched))
}

// proxyCleanliness is one minus the fraction of matched narratives carrying
// a recognized third-party-processor marker.
func (s *Scorer) proxyCleanliness(matched []model.Transaction) float64 {
	if len(matched) == 0 {
		return 0.0
	}

	contaminated := 0
	for _, txn := range matched {
		if _, found := FindProxyMarker(txn.Narrative); found {
			contaminated++
		}
	}
	return 1.0 - float64(contaminated)/float64(len(matched))
}

// NarrativeShape normalizes a narrative for shape comparison: uppercased,
// digit runs collapsed to '#', whitespace collapsed to single spaces.
// "ACME COFFEE #0042" and "acme coffee #7" share the shape "ACME COFFEE ##".
func NarrativeShape(narrative string) string {
	var b strings.Builder
	b.Grow(len(narrative))

	lastDigit := false
	lastSpace := false
	for _, r := range narrative {
		switch {
		case unicode.IsDigit(r):
			if !lastDigit {
				b.WriteByte('#')
			}
			lastDigit = true
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
			lastDigit = false
		default:
			b.WriteRune(unicode.ToUpper(r))
			lastDigit = false
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}
