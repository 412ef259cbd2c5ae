package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					max_iterations INTEGER NOT NULL,
					started_at DATETIME NOT NULL,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_runs_started ON runs(started_at)`,

				`CREATE TABLE IF NOT EXISTS rules (
					brand_id INTEGER NOT NULL,
					version INTEGER NOT NULL,
					pattern TEXT NOT NULL,
					category_set TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					active BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (brand_id, version)
				)`,
				`CREATE INDEX idx_rules_active ON rules(brand_id, active)`,

				`CREATE TABLE IF NOT EXISTS match_records (
					run_id TEXT NOT NULL,
					record_id TEXT NOT NULL,
					source_id TEXT NOT NULL,
					brand_id INTEGER NOT NULL,
					rule_version INTEGER NOT NULL,
					PRIMARY KEY (run_id, record_id, source_id, brand_id)
				)`,
				`CREATE INDEX idx_match_records_brand ON match_records(brand_id)`,

				`CREATE TABLE IF NOT EXISTS classification_results (
					run_id TEXT NOT NULL,
					brand_id INTEGER NOT NULL,
					version INTEGER NOT NULL,
					rule_version INTEGER NOT NULL,
					confirmed TEXT NOT NULL,
					excluded TEXT NOT NULL,
					ties_resolved TEXT NOT NULL,
					unresolved_ties TEXT NOT NULL,
					stats TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (run_id, brand_id, version)
				)`,
				`CREATE INDEX idx_results_brand ON classification_results(brand_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS refinement_directives (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					brand_id INTEGER NOT NULL,
					result_version INTEGER NOT NULL,
					issue_category TEXT NOT NULL,
					summary TEXT NOT NULL,
					cited_transaction_ids TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_directives_brand ON refinement_directives(brand_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS iteration_states (
					run_id TEXT NOT NULL,
					brand_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					iteration_count INTEGER NOT NULL DEFAULT 0,
					max_iterations INTEGER NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (run_id, brand_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add feedback submissions table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS feedback_submissions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					brand_id INTEGER NOT NULL,
					result_version INTEGER NOT NULL,
					type TEXT NOT NULL,
					text TEXT NOT NULL DEFAULT '',
					cited_ids TEXT,
					consumed BOOLEAN NOT NULL DEFAULT 0,
					submitted_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_feedback_pending ON feedback_submissions(brand_id, consumed, submitted_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// GetSchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) GetSchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
