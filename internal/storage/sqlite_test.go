package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tallyworks/tally/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test transactions.
func createTestTransactions(teamID string, count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	baseTime := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			ID:            fmt.Sprintf("txn-%03d", i+1),
			TeamID:        teamID,
			Date:          baseTime.Add(time.Duration(i) * 24 * time.Hour),
			Name:          fmt.Sprintf("Transaction #%d", i+1),
			Amount:        -float64(i+1) * 10.50,
			BankAccountID: "acct-1",
		}
	}
	return txns
}

func TestNewSQLiteStorage(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	if store.db == nil {
		t.Fatal("Expected db connection to be initialized")
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage(""); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage in nested directory: %v", err)
	}
	defer func() { _ = store.Close() }()
}
