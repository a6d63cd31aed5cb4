package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tallyworks/tally/internal/common"
	"github.com/tallyworks/tally/internal/storage"
)

// initStorage opens the configured SQLite database and applies pending
// migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "tally", "tally.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// requireTeamID validates the --team-id flag shared by tenant-scoped commands.
func requireTeamID(teamID string) error {
	if teamID == "" {
		return common.NewUserError("--team-id is required", common.ErrMissingConfig)
	}
	return nil
}
