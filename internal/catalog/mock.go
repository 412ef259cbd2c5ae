package catalog

import (
	"context"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// Mock is a mock implementation of service.CatalogStore for testing.
type Mock struct {
	// Functions that can be set by tests to control behavior
	GetBrandsFn       func(ctx context.Context) ([]model.Brand, error)
	GetCategoriesFn   func(ctx context.Context) ([]model.Category, error)
	GetTransactionsFn func(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error)

	// Fixture data returned when no function override is set
	Brands       []model.Brand
	Categories   []model.Category
	Transactions []model.Transaction

	// Call tracking
	GetBrandsCalls       int
	GetCategoriesCalls   int
	GetTransactionsCalls []service.TransactionFilter
}

// NewMock creates a new mock catalog store.
func NewMock() *Mock {
	return &Mock{
		GetTransactionsCalls: []service.TransactionFilter{},
	}
}

// GetBrands implements service.CatalogStore.GetBrands.
func (m *Mock) GetBrands(ctx context.Context) ([]model.Brand, error) {
	m.GetBrandsCalls++

	if m.GetBrandsFn != nil {
		return m.GetBrandsFn(ctx)
	}

	return append([]model.Brand{}, m.Brands...), nil
}

// GetCategories implements service.CatalogStore.GetCategories.
func (m *Mock) GetCategories(ctx context.Context) ([]model.Category, error) {
	m.GetCategoriesCalls++

	if m.GetCategoriesFn != nil {
		return m.GetCategoriesFn(ctx)
	}

	return append([]model.Category{}, m.Categories...), nil
}

// GetTransactions implements service.CatalogStore.GetTransactions. The
// default behavior applies the filter to the fixture data the same way the
// SQLite store would.
func (m *Mock) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, filter)

	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, filter)
	}

	return applyFilter(m.Transactions, filter), nil
}

// Reset clears all call tracking.
func (m *Mock) Reset() {
	m.GetBrandsCalls = 0
	m.GetCategoriesCalls = 0
	m.GetTransactionsCalls = []service.TransactionFilter{}
}

func applyFilter(txns []model.Transaction, filter service.TransactionFilter) []model.Transaction {
	sources := toStringSet(filter.SourceIDs)
	categories := toInt64Set(filter.CategoryIDs)
	brands := toInt64Set(filter.BrandIDs)

	matched := []model.Transaction{}
	for _, t := range txns {
		if sources != nil {
			if _, ok := sources[t.ID.SourceID]; !ok {
				continue
			}
		}
		if categories != nil {
			if _, ok := categories[t.CategoryID]; !ok {
				continue
			}
		}
		if brands != nil {
			if _, ok := brands[t.BrandID]; !ok {
				continue
			}
		}
		matched = append(matched, t)
	}

	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	return matched
}

func toStringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func toInt64Set(values []int64) map[int64]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Ensure Mock implements the CatalogStore interface.
var _ service.CatalogStore = (*Mock)(nil)
