package main

import (
	"context"
	"testing"

	"github.com/ledgerline/brandmatch/internal/service"
	"github.com/ledgerline/brandmatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogFile(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErr      string
		brands       int
		categories   int
		transactions int
	}{
		{
			name: "valid document",
			input: `{
				"brands": [{"id": 1, "name": "Shell", "sector": "automotive"}],
				"categories": [{"id": 20, "description": "Fuel and Service Stations", "sector": "automotive"}],
				"transactions": [{"record_id": "t1", "source_id": "bank-a", "narrative": "SHELL OIL 57442210", "category_id": 20}]
			}`,
			brands:       1,
			categories:   1,
			transactions: 1,
		},
		{
			name:  "empty arrays",
			input: `{"brands": [], "categories": [], "transactions": []}`,
		},
		{
			name:    "malformed json",
			input:   `{"brands": [`,
			wantErr: "failed to parse seed file",
		},
		{
			name:    "brand without name",
			input:   `{"brands": [{"id": 1}]}`,
			wantErr: "name is required",
		},
		{
			name:    "non positive brand id",
			input:   `{"brands": [{"id": 0, "name": "Shell"}]}`,
			wantErr: "id must be positive",
		},
		{
			name:    "duplicate brand id",
			input:   `{"brands": [{"id": 1, "name": "Shell"}, {"id": 1, "name": "Apple"}]}`,
			wantErr: "duplicate brand id 1",
		},
		{
			name:    "duplicate category id",
			input:   `{"categories": [{"id": 10, "description": "Coffee Shops"}, {"id": 10, "description": "Groceries"}]}`,
			wantErr: "duplicate category id 10",
		},
		{
			name:    "transaction missing source",
			input:   `{"transactions": [{"record_id": "t1", "narrative": "SHELL OIL"}]}`,
			wantErr: "record_id and source_id are required",
		},
		{
			name:    "duplicate transaction id",
			input:   `{"transactions": [{"record_id": "t1", "source_id": "a", "narrative": "X"}, {"record_id": "t1", "source_id": "a", "narrative": "Y"}]}`,
			wantErr: "duplicate transaction id t1@a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brands, categories, txns, err := parseCatalogFile([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, brands, tt.brands)
			assert.Len(t, categories, tt.categories)
			assert.Len(t, txns, tt.transactions)
		})
	}
}

func TestParseCatalogFile_ReplacesExistingCatalog(t *testing.T) {
	// The fixture catalog is pre-populated; a seed swaps all of it out.
	store := testutil.SetupTestCatalog(t)
	ctx := context.Background()

	input := `{
		"brands": [{"id": 7, "name": "Orbit Coffee", "sector": "food"}],
		"categories": [{"id": 11, "description": "Coffee Shops", "sector": "food"}],
		"transactions": [
			{"record_id": "r1", "source_id": "bank-z", "narrative": "ORBIT COFFEE 0042", "category_id": 11},
			{"record_id": "r2", "source_id": "bank-z", "narrative": "ORBIT COFFEE AIRSIDE", "category_id": 11, "brand_id": 7}
		]
	}`

	brands, categories, txns, err := parseCatalogFile([]byte(input))
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, brands, categories, txns))

	gotBrands, err := store.GetBrands(ctx)
	require.NoError(t, err)
	require.Len(t, gotBrands, 1)
	assert.Equal(t, "Orbit Coffee", gotBrands[0].Name)

	gotTxns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, gotTxns, 2)
	assert.Equal(t, int64(7), gotTxns[1].BrandID)
}
