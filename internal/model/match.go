package model

import "sort"

// MatchRecord states that a transaction satisfied one brand's rule: the
// rule's pattern matched the narrative and the transaction's category id was
// in the rule's category set. One transaction may match zero, one, or many
// brands.
type MatchRecord struct {
	TransactionID TransactionID
	BrandID       int64
	RuleVersion   int
}

// MatchSet is a collection of match records in canonical order: transaction
// key first, then brand id. Matching is a pure relation, so two match sets
// produced from identical inputs compare equal element for element.
type MatchSet []MatchRecord

// Sort puts the set into canonical order.
func (s MatchSet) Sort() {
	sort.Slice(s, func(i, j int) bool {
		ki, kj := s[i].TransactionID.Key(), s[j].TransactionID.Key()
		if ki != kj {
			return ki < kj
		}
		return s[i].BrandID < s[j].BrandID
	})
}

// ByBrand splits the set into per-brand match record slices.
func (s MatchSet) ByBrand() map[int64][]MatchRecord {
	out := make(map[int64][]MatchRecord)
	for _, rec := range s {
		out[rec.BrandID] = append(out[rec.BrandID], rec)
	}
	return out
}

// BrandsFor returns the brand ids matching each transaction key, preserving
// canonical order. Transactions with a single candidate brand map to
// one-element slices; longer slices are ties.
func (s MatchSet) BrandsFor() map[string][]int64 {
	out := make(map[string][]int64)
	for _, rec := range s {
		key := rec.TransactionID.Key()
		out[key] = append(out[key], rec.BrandID)
	}
	return out
}

// Equal reports whether two match sets are element-wise identical.
func (s MatchSet) Equal(other MatchSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
