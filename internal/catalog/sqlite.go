// Package catalog provides read access to the reference data the engine
// classifies against: brands, categories, and transaction records. The
// catalog is immutable for the duration of a run and makes no referential
// integrity promises; callers validate every foreign key before use.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ service.CatalogStore = (*SQLiteStore)(nil)

// SQLiteStore implements service.CatalogStore over local SQLite tables.
// In production deployments these tables mirror an upstream analytical
// store; the seed command fills them for development.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if necessary) the catalog database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("catalog dbPath cannot be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping catalog database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Init creates the catalog tables when absent. The tables deliberately
// carry no foreign key constraints: the engine must cope with dangling
// references, so the catalog must be able to hold them.
func (s *SQLiteStore) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS brands (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		sector TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		sector TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS transactions (
		record_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		merchant_ref TEXT NOT NULL DEFAULT '',
		narrative TEXT NOT NULL,
		category_id INTEGER NOT NULL,
		brand_id INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (record_id, source_id)
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_txn_category ON transactions(category_id);
	CREATE INDEX IF NOT EXISTS idx_catalog_txn_brand ON transactions(brand_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return nil
}

// GetBrands returns every brand, ordered by id.
func (s *SQLiteStore) GetBrands(ctx context.Context) ([]model.Brand, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, sector FROM brands ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var brands []model.Brand
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Sector); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// GetCategories returns every category, ordered by id.
func (s *SQLiteStore) GetCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, description, sector FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Description, &c.Sector); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetTransactions returns transactions matching the filter, ordered by the
// composite key for deterministic batches.
func (s *SQLiteStore) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := "SELECT record_id, source_id, merchant_ref, narrative, category_id, brand_id FROM transactions"
	var conditions []string
	var args []any

	if len(filter.SourceIDs) > 0 {
		conditions = append(conditions, "source_id IN ("+placeholders(len(filter.SourceIDs))+")")
		for _, id := range filter.SourceIDs {
			args = append(args, id)
		}
	}
	if len(filter.CategoryIDs) > 0 {
		conditions = append(conditions, "category_id IN ("+placeholders(len(filter.CategoryIDs))+")")
		for _, id := range filter.CategoryIDs {
			args = append(args, id)
		}
	}
	if len(filter.BrandIDs) > 0 {
		conditions = append(conditions, "brand_id IN ("+placeholders(len(filter.BrandIDs))+")")
		for _, id := range filter.BrandIDs {
			args = append(args, id)
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY record_id, source_id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID.RecordID, &t.ID.SourceID, &t.MerchantRef, &t.Narrative, &t.CategoryID, &t.BrandID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ReplaceAll atomically swaps the catalog contents. Used by the seed
// command; a failed load leaves the previous catalog untouched.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, brands []model.Brand, categories []model.Category, txns []model.Transaction) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"brands", "categories", "transactions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	brandStmt, err := tx.PrepareContext(ctx, "INSERT INTO brands (id, name, sector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare brand insert: %w", err)
	}
	defer func() { _ = brandStmt.Close() }()
	for _, b := range brands {
		if _, err := brandStmt.ExecContext(ctx, b.ID, b.Name, b.Sector); err != nil {
			return fmt.Errorf("failed to insert brand %d: %w", b.ID, err)
		}
	}

	catStmt, err := tx.PrepareContext(ctx, "INSERT INTO categories (id, description, sector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare category insert: %w", err)
	}
	defer func() { _ = catStmt.Close() }()
	for _, c := range categories {
		if _, err := catStmt.ExecContext(ctx, c.ID, c.Description, c.Sector); err != nil {
			return fmt.Errorf("failed to insert category %d: %w", c.ID, err)
		}
	}

	txnStmt, err := tx.PrepareContext(ctx, "INSERT INTO transactions (record_id, source_id, merchant_ref, narrative, category_id, brand_id) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer func() { _ = txnStmt.Close() }()
	for _, t := range txns {
		if t.ID.IsZero() {
			return fmt.Errorf("transaction with empty id cannot be loaded")
		}
		if _, err := txnStmt.ExecContext(ctx, t.ID.RecordID, t.ID.SourceID, t.MerchantRef, t.Narrative, t.CategoryID, t.BrandID); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
