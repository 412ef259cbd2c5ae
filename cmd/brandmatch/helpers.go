package main

import (
	"context"
	"fmt"

	"github.com/ledgerline/brandmatch/internal/catalog"
	"github.com/ledgerline/brandmatch/internal/config"
	"github.com/ledgerline/brandmatch/internal/service"
	"github.com/ledgerline/brandmatch/internal/storage"
	"github.com/spf13/viper"
)

// initStorage initializes the engine store with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/brandmatch/brandmatch.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initCatalog opens the catalog store holding brands, categories, and
// transactions.
func initCatalog(ctx context.Context) (*catalog.SQLiteStore, error) {
	dbPath := viper.GetString("catalog.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/brandmatch/catalog.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := catalog.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return store, nil
}
