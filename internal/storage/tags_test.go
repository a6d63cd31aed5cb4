package storage

import (
	"context"
	"testing"
)

func TestInsertTagLink_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("team-1", 1)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.InsertTagLink(ctx, "team-1", txns[0].ID, "tag-recurring"); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}
	if err := store.InsertTagLink(ctx, "team-1", txns[0].ID, "tag-media"); err != nil {
		t.Fatalf("Failed to insert second tag: %v", err)
	}

	tagIDs, err := store.GetTagIDs(ctx, "team-1", txns[0].ID)
	if err != nil {
		t.Fatalf("Failed to get tag ids: %v", err)
	}
	if len(tagIDs) != 2 {
		t.Fatalf("Got %d tag links, want 2: %v", len(tagIDs), tagIDs)
	}
	if tagIDs[0] != "tag-media" || tagIDs[1] != "tag-recurring" {
		t.Errorf("Tag ids = %v, want sorted [tag-media tag-recurring]", tagIDs)
	}
}

func TestInsertTagLink_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertTagLink(ctx, "", "txn-1", "tag-1"); err == nil {
		t.Error("Expected error for empty team id")
	}
	if err := store.InsertTagLink(ctx, "team-1", "", "tag-1"); err == nil {
		t.Error("Expected error for empty transaction id")
	}
	if err := store.InsertTagLink(ctx, "team-1", "txn-1", ""); err == nil {
		t.Error("Expected error for empty tag id")
	}
}

func TestGetTagIDs_Empty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	tagIDs, err := store.GetTagIDs(context.Background(), "team-1", "txn-1")
	if err != nil {
		t.Fatalf("Failed to get tag ids: %v", err)
	}
	if len(tagIDs) != 0 {
		t.Errorf("Expected no tags, got %v", tagIDs)
	}
}
