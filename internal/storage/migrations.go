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
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					name TEXT NOT NULL,
					merchant_name TEXT,
					amount REAL NOT NULL,
					bank_account_id TEXT,
					category_slug TEXT,
					internal INTEGER NOT NULL DEFAULT 0,
					assigned_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_team ON transactions(team_id)`,
				`CREATE INDEX idx_transactions_team_date ON transactions(team_id, date)`,

				`CREATE TABLE IF NOT EXISTS transaction_rules (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					name TEXT NOT NULL,
					enabled INTEGER NOT NULL DEFAULT 1,
					priority INTEGER NOT NULL DEFAULT 0,
					merchant_match TEXT,
					merchant_match_type TEXT NOT NULL DEFAULT 'contains',
					amount_operator TEXT,
					amount_value REAL,
					amount_value_max REAL,
					account_id TEXT,
					date_start DATETIME,
					date_end DATETIME,
					set_category_slug TEXT,
					set_merchant_name TEXT,
					add_tag_ids TEXT,
					set_excluded INTEGER,
					set_assigned_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transaction_rules_team ON transaction_rules(team_id)`,

				`CREATE TABLE IF NOT EXISTS merchants (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_merchants_team_name ON merchants(team_id, name)`,

				`CREATE TABLE IF NOT EXISTS transaction_tags (
					transaction_id TEXT NOT NULL,
					tag_id TEXT NOT NULL,
					team_id TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (transaction_id, tag_id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_transaction_tags_tag ON transaction_tags(tag_id)`,
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
		Description: "Add deals and match audit columns",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS deals (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					merchant_id TEXT NOT NULL,
					deal_code TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (merchant_id) REFERENCES merchants(id)
				)`,
				`CREATE INDEX idx_deals_team_merchant ON deals(team_id, merchant_id)`,

				`ALTER TABLE transactions ADD COLUMN deal_code TEXT`,
				`ALTER TABLE transactions ADD COLUMN matched_deal_id TEXT`,
				`ALTER TABLE transactions ADD COLUMN match_status TEXT NOT NULL DEFAULT 'unmatched'`,
				`ALTER TABLE transactions ADD COLUMN match_rule TEXT`,
				`ALTER TABLE transactions ADD COLUMN matched_at DATETIME`,
				`CREATE INDEX idx_transactions_match_status ON transactions(team_id, match_status)`,

				`ALTER TABLE transaction_rules ADD COLUMN set_deal_code TEXT`,
				`ALTER TABLE transaction_rules ADD COLUMN auto_resolve_deal INTEGER NOT NULL DEFAULT 0`,
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
