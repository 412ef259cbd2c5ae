package catalog

import (
	"context"
	"fmt"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// Snapshot is a full catalog read taken at the start of a run. The engine
// works from the snapshot so that mid-run catalog changes cannot produce
// inconsistent batches.
type Snapshot struct {
	Brands       []model.Brand
	Categories   model.CategoryIndex
	Transactions []model.Transaction
}

// Load reads the entire catalog through the store. Any store error is
// returned as-is; the caller treats it as fatal.
func Load(ctx context.Context, store service.CatalogStore) (*Snapshot, error) {
	brands, err := store.GetBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load brands: %w", err)
	}
	categories, err := store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return &Snapshot{
		Brands:       brands,
		Categories:   model.NewCategoryIndex(categories),
		Transactions: txns,
	}, nil
}

// Report summarizes the referential health of a snapshot. Dangling
// references are expected in real catalogs and never abort a run; they are
// surfaced so operators can chase the upstream data problem.
type Report struct {
	Brands       int
	Categories   int
	Transactions int

	// UnknownCategoryRefs counts transactions whose category id resolves to
	// no known category.
	UnknownCategoryRefs int
	// UnknownBrandRefs counts transactions carrying a prior brand assignment
	// that resolves to no known brand. Zero brand ids mean unassigned and are
	// not counted.
	UnknownBrandRefs int

	// SampleUnknownCategoryIDs holds up to five distinct offending category
	// ids for log output.
	SampleUnknownCategoryIDs []int64
}

// Clean reports whether every reference in the snapshot resolved.
func (r Report) Clean() bool {
	return r.UnknownCategoryRefs == 0 && r.UnknownBrandRefs == 0
}

const maxSampleIDs = 5

// Validate checks every transaction's category and prior brand reference
// against the snapshot's reference tables.
func (s *Snapshot) Validate() Report {
	report := Report{
		Brands:       len(s.Brands),
		Categories:   len(s.Categories),
		Transactions: len(s.Transactions),
	}

	brandIDs := make(map[int64]struct{}, len(s.Brands))
	for _, b := range s.Brands {
		brandIDs[b.ID] = struct{}{}
	}

	seenUnknownCategories := make(map[int64]struct{})
	for _, txn := range s.Transactions {
		if _, ok := s.Categories[txn.CategoryID]; !ok {
			report.UnknownCategoryRefs++
			if _, seen := seenUnknownCategories[txn.CategoryID]; !seen && len(report.SampleUnknownCategoryIDs) < maxSampleIDs {
				report.SampleUnknownCategoryIDs = append(report.SampleUnknownCategoryIDs, txn.CategoryID)
			}
			seenUnknownCategories[txn.CategoryID] = struct{}{}
		}
		if txn.BrandID != 0 {
			if _, ok := brandIDs[txn.BrandID]; !ok {
				report.UnknownBrandRefs++
			}
		}
	}

	return report
}
