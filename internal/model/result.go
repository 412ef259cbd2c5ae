package model

import (
	"fmt"
	"time"
)

// ReasonCode identifies why the confirmation filter excluded a match.
type ReasonCode string

const (
	// ReasonCategorySectorMismatch marks matches whose category sector is
	// inconsistent with the brand's sector and whose narrative carries no
	// brand evidence.
	ReasonCategorySectorMismatch ReasonCode = "category-sector-mismatch"
	// ReasonKnownProxyText marks matches whose narrative is dominated by a
	// recognized third-party processor marker hiding the true merchant.
	ReasonKnownProxyText ReasonCode = "known-proxy-text"
	// ReasonGenericWordCollision marks matches where only common dictionary
	// words of the brand name appear in the narrative.
	ReasonGenericWordCollision ReasonCode = "generic-word-collision"
)

// Exclusion is a match rejected by the confirmation filter, with a
// machine-checkable reason code and free-text detail.
type Exclusion struct {
	TransactionID TransactionID `json:"transaction_id"`
	Reason        ReasonCode    `json:"reason"`
	Detail        string        `json:"detail,omitempty"`
}

// TieOutcome records the resolution of a transaction matched by two or more
// brands. WinnerBrandID is zero when the tie could not be resolved with
// sufficient confidence and requires manual resolution.
type TieOutcome struct {
	TransactionID TransactionID `json:"transaction_id"`
	Justification string        `json:"justification"`
	Method        string        `json:"method"`
	LoserBrandIDs []int64       `json:"loser_brand_ids,omitempty"`
	WinnerBrandID int64         `json:"winner_brand_id"`
	Confidence    float64       `json:"confidence"`
}

// Resolved reports whether the tie ended with a single-brand assignment.
func (t TieOutcome) Resolved() bool {
	return t.WinnerBrandID != 0
}

// ResultStats summarizes a brand's classification result.
type ResultStats struct {
	TotalMatched   int     `json:"total_matched"`
	TotalConfirmed int     `json:"total_confirmed"`
	TotalExcluded  int     `json:"total_excluded"`
	ExclusionRate  float64 `json:"exclusion_rate"`
}

// ComputeStats derives summary statistics from the raw counts.
func ComputeStats(matched, confirmed, excluded int) ResultStats {
	stats := ResultStats{
		TotalMatched:   matched,
		TotalConfirmed: confirmed,
		TotalExcluded:  excluded,
	}
	if matched > 0 {
		stats.ExclusionRate = float64(excluded) / float64(matched)
	}
	return stats
}

// ClassificationResult is the per-brand, per-version outcome of a run. The
// storage key (run id, brand id, version) is deterministic and writes are
// idempotent: re-writing an identical version is a no-op.
type ClassificationResult struct {
	CreatedAt      time.Time       `json:"created_at"`
	RunID          string          `json:"run_id"`
	Confirmed      []TransactionID `json:"confirmed"`
	Excluded       []Exclusion     `json:"excluded"`
	TiesResolved   []TieOutcome    `json:"ties_resolved"`
	UnresolvedTies []TransactionID `json:"unresolved_ties"`
	Stats          ResultStats     `json:"stats"`
	BrandID        int64           `json:"brand_id"`
	RuleVersion    int             `json:"rule_version"`
	Version        int             `json:"version"`
}

// Validate enforces the result invariants: the confirmed and excluded sets
// must be disjoint, and every referenced transaction must descend from the
// brand's match set when one is supplied (nil skips the ancestry check).
func (r *ClassificationResult) Validate(matched map[string]bool) error {
	if r.RunID == "" {
		return fmt.Errorf("result run id is required")
	}
	if r.BrandID <= 0 {
		return fmt.Errorf("result brand id is required")
	}
	confirmed := make(map[string]bool, len(r.Confirmed))
	for _, id := range r.Confirmed {
		confirmed[id.Key()] = true
	}
	for _, ex := range r.Excluded {
		if confirmed[ex.TransactionID.Key()] {
			return fmt.Errorf("transaction %s is both confirmed and excluded", ex.TransactionID)
		}
	}
	if matched != nil {
		check := func(id TransactionID, set string) error {
			if !matched[id.Key()] {
				return fmt.Errorf("%s transaction %s was never matched", set, id)
			}
			return nil
		}
		for _, id := range r.Confirmed {
			if err := check(id, "confirmed"); err != nil {
				return err
			}
		}
		for _, ex := range r.Excluded {
			if err := check(ex.TransactionID, "excluded"); err != nil {
				return err
			}
		}
		for _, tie := range r.TiesResolved {
			if err := check(tie.TransactionID, "tie"); err != nil {
				return err
			}
		}
		for _, id := range r.UnresolvedTies {
			if err := check(id, "unresolved tie"); err != nil {
				return err
			}
		}
	}
	return nil
}
