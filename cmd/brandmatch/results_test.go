package main

import (
	"testing"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterResults(t *testing.T) {
	// Ordered by brand id then version, the way ListResultsByRun returns them.
	results := []model.ClassificationResult{
		{BrandID: 1, Version: 1},
		{BrandID: 1, Version: 2},
		{BrandID: 2, Version: 1},
		{BrandID: 3, Version: 1},
		{BrandID: 3, Version: 2},
		{BrandID: 3, Version: 3},
	}

	t.Run("no filters keep everything", func(t *testing.T) {
		got := filterResults(results, 0, false)
		assert.Len(t, got, 6)
	})

	t.Run("brand filter", func(t *testing.T) {
		got := filterResults(results, 3, false)
		require.Len(t, got, 3)
		for _, r := range got {
			assert.Equal(t, int64(3), r.BrandID)
		}
	})

	t.Run("latest keeps one version per brand", func(t *testing.T) {
		got := filterResults(results, 0, true)
		require.Len(t, got, 3)
		assert.Equal(t, 2, got[0].Version)
		assert.Equal(t, 1, got[1].Version)
		assert.Equal(t, 3, got[2].Version)
	})

	t.Run("brand and latest combined", func(t *testing.T) {
		got := filterResults(results, 3, true)
		require.Len(t, got, 1)
		assert.Equal(t, 3, got[0].Version)
	})
}
