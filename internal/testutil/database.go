// Package testutil provides shared helpers for tests that need real storage
// or a populated catalog: temp-file SQLite stores with migrations applied,
// and a small but adversarial fixture dataset.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ledgerline/brandmatch/internal/catalog"
	"github.com/ledgerline/brandmatch/internal/storage"
)

// SetupTestStorage creates a migrated SQLite engine store in a temp
// directory. The store is closed automatically when the test finishes.
func SetupTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to migrate test storage: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test storage: %v", err)
		}
	})

	return store
}

// SetupTestCatalog creates an initialized catalog store in a temp directory,
// loaded with the fixture dataset. The store is closed automatically when
// the test finishes.
func SetupTestCatalog(t *testing.T) *catalog.SQLiteStore {
	t.Helper()

	store, err := catalog.NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create test catalog: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to initialize test catalog: %v", err)
	}
	if err := store.ReplaceAll(ctx, FixtureBrands(), FixtureCategories(), FixtureTransactions()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to load fixture catalog: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test catalog: %v", err)
		}
	})

	return store
}
