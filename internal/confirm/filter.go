// Package confirm implements the confirmation filter: per-brand rejection of
// matches whose narrative/category combination is inconsistent with the
// brand despite satisfying the raw pattern and category tests. It runs
// strictly after matching and strictly before tie resolution.
package confirm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/score"
)

// stopwords are brand-name tokens that carry no identifying signal on their
// own and are ignored when collecting brand evidence from a narrative.
var stopwords = map[string]bool{
	"the": true, "and": true, "of": true, "a": true, "an": true,
	"co": true, "inc": true, "corp": true, "llc": true, "ltd": true,
	"plc": true, "group": true, "holdings": true,
}

// genericWords are everyday dictionary words that famously collide with
// brand names. A match supported only by these tokens is treated as a
// word collision, not brand evidence: a fruit stand narrative containing
// "apple" says nothing about the technology brand.
var genericWords = map[string]bool{
	"apple": true, "orange": true, "shell": true, "target": true,
	"gap": true, "coach": true, "tide": true, "dove": true,
	"polo": true, "puma": true, "jaguar": true, "corona": true,
	"monster": true, "boost": true, "subway": true, "delta": true,
	"amazon": true, "oracle": true, "caterpillar": true, "sprint": true,
	"visa": true, "chase": true, "discover": true, "total": true,
	"shop": true, "store": true, "market": true, "coffee": true,
	"cafe": true, "house": true, "city": true, "fresh": true,
	"food": true, "foods": true, "farm": true, "express": true,
	"general": true, "national": true, "united": true, "first": true,
}

// Filter applies brand-specific heuristics to a single brand's match set.
// It is pure and idempotent: the same inputs always produce the same
// confirmed/excluded partition, and it knows nothing about other brands.
type Filter struct{}

// NewFilter returns a confirmation filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Confirm partitions the brand's matched transactions into confirmed ids and
// exclusions. Exclusions carry a machine-checkable reason code plus detail
// text. The confirmed and excluded sets are disjoint by construction and
// preserve the input order.
func (f *Filter) Confirm(brand model.Brand, rule *model.Rule, matched []model.Transaction, categories model.CategoryIndex) ([]model.TransactionID, []model.Exclusion) {
	brandTokens := identifyingTokens(brand.Name)

	var confirmed []model.TransactionID
	var excluded []model.Exclusion

	for _, txn := range matched {
		if reason, detail, reject := f.evaluate(brand, brandTokens, txn, categories); reject {
			excluded = append(excluded, model.Exclusion{
				TransactionID: txn.ID,
				Reason:        reason,
				Detail:        detail,
			})
			continue
		}
		confirmed = append(confirmed, txn.ID)
	}

	return confirmed, excluded
}

// evaluate runs the rejection heuristics in order: the proxy gate first,
// then the sector gate for category/sector disagreements.
func (f *Filter) evaluate(brand model.Brand, brandTokens map[string]bool, txn model.Transaction, categories model.CategoryIndex) (model.ReasonCode, string, bool) {
	// Proxy gate: a processor marker with no brand token in the residual
	// merchant text means the pattern matched intermediary noise.
	if residual, marker, found := score.StripProxyMarker(txn.Narrative); found {
		if !containsAny(common.TokenSet(residual), brandTokens) {
			detail := fmt.Sprintf("narrative carries %s proxy text and the residual %q has no brand token", marker.Name, residual)
			return model.ReasonKnownProxyText, detail, true
		}
	}

	// Sector gate: only engaged when the transaction's category sector
	// disagrees with the brand's declared sector.
	sector := categories.Sector(txn.CategoryID)
	if sector == "" || strings.EqualFold(sector, brand.Sector) {
		return "", "", false
	}

	present := intersect(common.TokenSet(txn.Narrative), brandTokens)
	if len(present) == 0 {
		detail := fmt.Sprintf("category sector %q disagrees with brand sector %q and the narrative carries no brand token", sector, brand.Sector)
		return model.ReasonCategorySectorMismatch, detail, true
	}

	if onlyGeneric(present) {
		detail := fmt.Sprintf("only generic word(s) %s of the brand name appear in a %q sector narrative", strings.Join(present, ", "), sector)
		return model.ReasonGenericWordCollision, detail, true
	}

	// Distinctive brand evidence outweighs the sector disagreement.
	return "", "", false
}

// identifyingTokens extracts the brand-name tokens that can serve as
// narrative evidence, dropping corporate stopwords.
func identifyingTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range common.Tokenize(name) {
		if !stopwords[t] {
			tokens[t] = true
		}
	}
	return tokens
}

func containsAny(haystack, needles map[string]bool) bool {
	for t := range needles {
		if haystack[t] {
			return true
		}
	}
	return false
}

// intersect returns the needle tokens present in the haystack, sorted for
// deterministic detail strings.
func intersect(haystack, needles map[string]bool) []string {
	var present []string
	for t := range needles {
		if haystack[t] {
			present = append(present, t)
		}
	}
	sort.Strings(present)
	return present
}

func onlyGeneric(tokens []string) bool {
	for _, t := range tokens {
		if !genericWords[t] {
			return false
		}
	}
	return len(tokens) > 0
}
