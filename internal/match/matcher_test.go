package match

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/brandmatch/internal/model"
)

func testCategories() model.CategoryIndex {
	return model.NewCategoryIndex([]model.Category{
		{ID: 10, Description: "Coffee shops", Sector: "food"},
		{ID: 20, Description: "Fuel stations", Sector: "fuel"},
		{ID: 30, Description: "Generic services", Sector: "services"},
	})
}

func txn(record string, categoryID int64, narrative string) model.Transaction {
	return model.Transaction{
		ID:         model.TransactionID{RecordID: record, SourceID: "src-1"},
		Narrative:  narrative,
		CategoryID: categoryID,
	}
}

func TestMatcher_Match(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		rules []model.Rule
		txns  []model.Transaction
		want  []model.MatchRecord
	}{
		{
			name: "pattern and category both gate",
			rules: []model.Rule{
				{BrandID: 1, Version: 1, Pattern: "ACME COFFEE", CategorySet: []int64{10}},
			},
			txns: []model.Transaction{
				txn("t1", 10, "ACME COFFEE #42"),
				// Pattern matches but the category gate fails.
				txn("t2", 30, "SQ *ACME COFFEE"),
				// Category matches but the pattern gate fails.
				txn("t3", 10, "BEAN BARN"),
			},
			want: []model.MatchRecord{
				{TransactionID: model.TransactionID{RecordID: "t1", SourceID: "src-1"}, BrandID: 1, RuleVersion: 1},
			},
		},
		{
			name: "one transaction may match many brands",
			rules: []model.Rule{
				{BrandID: 1, Version: 2, Pattern: "^SHELL", CategorySet: []int64{20}},
				{BrandID: 2, Version: 1, Pattern: "^SHELL STATION", CategorySet: []int64{20}},
			},
			txns: []model.Transaction{
				txn("t1", 20, "SHELL STATION 4421"),
			},
			want: []model.MatchRecord{
				{TransactionID: model.TransactionID{RecordID: "t1", SourceID: "src-1"}, BrandID: 1, RuleVersion: 2},
				{TransactionID: model.TransactionID{RecordID: "t1", SourceID: "src-1"}, BrandID: 2, RuleVersion: 1},
			},
		},
		{
			name: "matching is case insensitive",
			rules: []model.Rule{
				{BrandID: 1, Version: 1, Pattern: "acme", CategorySet: []int64{10}},
			},
			txns: []model.Transaction{
				txn("t1", 10, "Acme Coffee Downtown"),
			},
			want: []model.MatchRecord{
				{TransactionID: model.TransactionID{RecordID: "t1", SourceID: "src-1"}, BrandID: 1, RuleVersion: 1},
			},
		},
		{
			name: "unknown transaction category never matches",
			rules: []model.Rule{
				{BrandID: 1, Version: 1, Pattern: "ACME", CategorySet: []int64{10}},
			},
			txns: []model.Transaction{
				txn("t1", 999, "ACME COFFEE"),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rejected := NewMatcher(tt.rules, testCategories(), nil)
			require.Empty(t, rejected)

			got, err := m.Match(ctx, tt.txns)
			require.NoError(t, err)
			assert.Equal(t, model.MatchSet(tt.want), got)
		})
	}
}

func TestNewMatcher_RejectsUncompilablePatterns(t *testing.T) {
	rules := []model.Rule{
		{BrandID: 1, Version: 1, Pattern: "ACME", CategorySet: []int64{10}},
		{BrandID: 2, Version: 3, Pattern: "([unclosed", CategorySet: []int64{10}},
	}

	m, rejected := NewMatcher(rules, testCategories(), nil)

	require.Len(t, rejected, 1)
	assert.Equal(t, int64(2), rejected[0].BrandID)
	assert.Equal(t, 3, rejected[0].RuleVersion)

	// The healthy brand still matches.
	got, err := m.Match(context.Background(), []model.Transaction{txn("t1", 10, "ACME COFFEE")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].BrandID)
}

func TestMatcher_Deterministic(t *testing.T) {
	rules := []model.Rule{
		{BrandID: 1, Version: 1, Pattern: "COFFEE", CategorySet: []int64{10, 30}},
		{BrandID: 2, Version: 1, Pattern: "SHELL", CategorySet: []int64{20}},
	}

	txns := make([]model.Transaction, 0, 300)
	for i := 0; i < 100; i++ {
		txns = append(txns,
			txn(fmt.Sprintf("c%d", i), 10, fmt.Sprintf("ACME COFFEE #%d", i)),
			txn(fmt.Sprintf("f%d", i), 20, fmt.Sprintf("SHELL STATION %d", i)),
			txn(fmt.Sprintf("x%d", i), 30, "UNRELATED MERCHANT"),
		)
	}

	m, rejected := NewMatcher(rules, testCategories(), nil)
	require.Empty(t, rejected)

	first, err := m.Match(context.Background(), txns)
	require.NoError(t, err)
	require.Len(t, first, 200)

	for i := 0; i < 5; i++ {
		again, err := m.Match(context.Background(), txns)
		require.NoError(t, err)
		assert.True(t, first.Equal(again), "match set changed on invocation %d", i)
	}
}

func TestMatcher_PartitionedEqualsSequential(t *testing.T) {
	rules := []model.Rule{
		{BrandID: 1, Version: 1, Pattern: "COFFEE", CategorySet: []int64{10}},
		{BrandID: 2, Version: 1, Pattern: "SHELL", CategorySet: []int64{20}},
		{BrandID: 3, Version: 1, Pattern: "STATION", CategorySet: []int64{20}},
	}

	var txns []model.Transaction
	for i := 0; i < 250; i++ {
		txns = append(txns,
			txn(fmt.Sprintf("c%d", i), 10, fmt.Sprintf("BIG COFFEE %d", i)),
			txn(fmt.Sprintf("f%d", i), 20, fmt.Sprintf("SHELL STATION %d", i)),
		)
	}

	m, rejected := NewMatcher(rules, testCategories(), nil)
	require.Empty(t, rejected)

	sequential, err := m.Match(context.Background(), txns)
	require.NoError(t, err)

	for _, partitions := range []int{2, 3, 4, 7} {
		parallel, err := m.MatchPartitioned(context.Background(), txns, partitions)
		require.NoError(t, err)
		assert.True(t, sequential.Equal(parallel), "partitions=%d diverged from sequential", partitions)
	}
}

func TestMatcher_ContextCancellation(t *testing.T) {
	rules := []model.Rule{
		{BrandID: 1, Version: 1, Pattern: "ACME", CategorySet: []int64{10}},
	}

	var txns []model.Transaction
	for i := 0; i < 5000; i++ {
		txns = append(txns, txn(fmt.Sprintf("t%d", i), 10, "ACME COFFEE"))
	}

	m, _ := NewMatcher(rules, testCategories(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, txns)
	assert.ErrorIs(t, err, context.Canceled)
}
