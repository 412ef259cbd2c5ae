package model

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Rule is a versioned matching rule for one brand: a transaction belongs to
// the brand iff the pattern matches its narrative and its category id is in
// the category set. Rules are produced by an external collaborator and are
// untrusted until validated; a rule that fails validation is never stored
// as active. Versions are monotonically increasing per brand and prior
// versions are never overwritten.
type Rule struct {
	CreatedAt   time.Time `json:"created_at"`
	Pattern     string    `json:"pattern"`
	CategorySet []int64   `json:"category_set"`
	BrandID     int64     `json:"brand_id"`
	Confidence  float64   `json:"confidence"`
	Version     int       `json:"version"`
	Active      bool      `json:"active"`
}

// Compile compiles the rule's pattern. Matching is case-insensitive unless
// the pattern already carries its own flags.
func (r *Rule) Compile() (*regexp.Regexp, error) {
	pattern := r.Pattern
	if len(pattern) < 4 || pattern[:4] != "(?i)" {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule pattern %q does not compile: %w", r.Pattern, err)
	}
	return re, nil
}

// Validate checks the rule against the category reference set. It enforces
// the activation invariant: the pattern must compile, the category set must
// be non-empty and a subset of known category ids, and the self-reported
// confidence must be within [0,1].
func (r *Rule) Validate(categories CategoryIndex) error {
	if r.BrandID <= 0 {
		return fmt.Errorf("rule brand id is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern is required")
	}
	if _, err := r.Compile(); err != nil {
		return err
	}
	if len(r.CategorySet) == 0 {
		return fmt.Errorf("rule category set must not be empty")
	}
	if ok, unknown := categories.Contains(r.CategorySet); !ok {
		return fmt.Errorf("rule category set references unknown category %d", unknown)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rule confidence must be between 0 and 1, got %v", r.Confidence)
	}
	return nil
}

// NormalizeCategorySet sorts the category set and removes duplicates so that
// equal rules have byte-identical representations.
func (r *Rule) NormalizeCategorySet() {
	if len(r.CategorySet) < 2 {
		return
	}
	sort.Slice(r.CategorySet, func(i, j int) bool { return r.CategorySet[i] < r.CategorySet[j] })
	out := r.CategorySet[:1]
	for _, id := range r.CategorySet[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	r.CategorySet = out
}

// AllowsCategory reports whether the rule's category set contains the id.
func (r *Rule) AllowsCategory(id int64) bool {
	for _, c := range r.CategorySet {
		if c == id {
			return true
		}
	}
	return false
}
