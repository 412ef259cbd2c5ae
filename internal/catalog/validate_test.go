package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

func TestLoad_ReadsEntireCatalog(t *testing.T) {
	mock := NewMock()
	mock.Brands = testBrands()
	mock.Categories = testCategories()
	mock.Transactions = testTransactions()

	snapshot, err := Load(context.Background(), mock)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(snapshot.Brands) != 3 {
		t.Errorf("Expected 3 brands, got %d", len(snapshot.Brands))
	}
	if len(snapshot.Categories) != 3 {
		t.Errorf("Expected 3 categories in index, got %d", len(snapshot.Categories))
	}
	if got := snapshot.Categories.Sector(20); got != "automotive" {
		t.Errorf("Expected sector automotive for category 20, got %q", got)
	}
	if len(snapshot.Transactions) != 5 {
		t.Errorf("Expected 5 transactions, got %d", len(snapshot.Transactions))
	}
	if mock.GetBrandsCalls != 1 || mock.GetCategoriesCalls != 1 || len(mock.GetTransactionsCalls) != 1 {
		t.Errorf("Expected one call per store method, got brands=%d categories=%d transactions=%d",
			mock.GetBrandsCalls, mock.GetCategoriesCalls, len(mock.GetTransactionsCalls))
	}
}

func TestLoad_PropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection lost")

	tests := []struct {
		configure func(*Mock)
		name      string
	}{
		{
			name: "brand read fails",
			configure: func(m *Mock) {
				m.GetBrandsFn = func(_ context.Context) ([]model.Brand, error) { return nil, storeErr }
			},
		},
		{
			name: "category read fails",
			configure: func(m *Mock) {
				m.GetCategoriesFn = func(_ context.Context) ([]model.Category, error) { return nil, storeErr }
			},
		},
		{
			name: "transaction read fails",
			configure: func(m *Mock) {
				m.GetTransactionsFn = func(_ context.Context, _ service.TransactionFilter) ([]model.Transaction, error) {
					return nil, storeErr
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMock()
			tt.configure(mock)

			_, err := Load(context.Background(), mock)
			if !errors.Is(err, storeErr) {
				t.Errorf("Expected wrapped store error, got %v", err)
			}
		})
	}
}

func TestSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name                string
		transactions        []model.Transaction
		wantUnknownCategory int
		wantUnknownBrand    int
		wantClean           bool
	}{
		{
			name:         "clean catalog",
			transactions: testTransactions(),
			wantClean:    true,
		},
		{
			name: "unknown category reference",
			transactions: []model.Transaction{
				{ID: model.TransactionID{RecordID: "x1", SourceID: "s"}, Narrative: "A", CategoryID: 999},
				{ID: model.TransactionID{RecordID: "x2", SourceID: "s"}, Narrative: "B", CategoryID: 10},
			},
			wantUnknownCategory: 1,
		},
		{
			name: "unknown brand reference",
			transactions: []model.Transaction{
				{ID: model.TransactionID{RecordID: "x1", SourceID: "s"}, Narrative: "A", CategoryID: 10, BrandID: 777},
			},
			wantUnknownBrand: 1,
		},
		{
			name: "zero brand id means unassigned",
			transactions: []model.Transaction{
				{ID: model.TransactionID{RecordID: "x1", SourceID: "s"}, Narrative: "A", CategoryID: 10, BrandID: 0},
			},
			wantClean: true,
		},
		{
			name: "multiple dangling references",
			transactions: []model.Transaction{
				{ID: model.TransactionID{RecordID: "x1", SourceID: "s"}, Narrative: "A", CategoryID: 998, BrandID: 777},
				{ID: model.TransactionID{RecordID: "x2", SourceID: "s"}, Narrative: "B", CategoryID: 999},
				{ID: model.TransactionID{RecordID: "x3", SourceID: "s"}, Narrative: "C", CategoryID: 999},
			},
			wantUnknownCategory: 3,
			wantUnknownBrand:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := &Snapshot{
				Brands:       testBrands(),
				Categories:   model.NewCategoryIndex(testCategories()),
				Transactions: tt.transactions,
			}

			report := snapshot.Validate()
			if report.UnknownCategoryRefs != tt.wantUnknownCategory {
				t.Errorf("UnknownCategoryRefs = %d, want %d", report.UnknownCategoryRefs, tt.wantUnknownCategory)
			}
			if report.UnknownBrandRefs != tt.wantUnknownBrand {
				t.Errorf("UnknownBrandRefs = %d, want %d", report.UnknownBrandRefs, tt.wantUnknownBrand)
			}
			if report.Clean() != tt.wantClean {
				t.Errorf("Clean() = %v, want %v", report.Clean(), tt.wantClean)
			}
			if report.Transactions != len(tt.transactions) {
				t.Errorf("Transactions = %d, want %d", report.Transactions, len(tt.transactions))
			}
		})
	}
}

func TestSnapshot_Validate_CapsSampleIDs(t *testing.T) {
	txns := make([]model.Transaction, 0, 8)
	for i := 0; i < 8; i++ {
		txns = append(txns, model.Transaction{
			ID:         model.TransactionID{RecordID: string(rune('a' + i)), SourceID: "s"},
			Narrative:  "X",
			CategoryID: int64(900 + i),
		})
	}

	snapshot := &Snapshot{
		Categories:   model.NewCategoryIndex(testCategories()),
		Transactions: txns,
	}

	report := snapshot.Validate()
	if report.UnknownCategoryRefs != 8 {
		t.Errorf("UnknownCategoryRefs = %d, want 8", report.UnknownCategoryRefs)
	}
	if len(report.SampleUnknownCategoryIDs) != maxSampleIDs {
		t.Errorf("Sample size = %d, want %d", len(report.SampleUnknownCategoryIDs), maxSampleIDs)
	}
}
