package rules

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/model"
	"github.com/tallyworks/tally/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedTransactions(t *testing.T, store *storage.SQLiteStorage, txns ...model.Transaction) {
	t.Helper()
	for i := range txns {
		if txns[i].Date.IsZero() {
			txns[i].Date = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		}
	}
	require.NoError(t, store.SaveTransactions(context.Background(), txns))
}

func TestEngineOverSQLite_CategorizeByMerchant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:          "team-1",
		Name:            "uber to travel",
		Enabled:         true,
		MerchantMatch:   strPtr("uber"),
		SetCategorySlug: strPtr("travel"),
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "UBER TRIP 482", Amount: -23.50},
		model.Transaction{ID: "txn-2", TeamID: "team-1", Name: "GROCERY STORE", Amount: -40},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1", "txn-2"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1, Unmatched: 1}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "travel", txn.CategorySlug)

	txn, err = store.GetTransactionByID(ctx, "team-1", "txn-2")
	require.NoError(t, err)
	assert.Empty(t, txn.CategorySlug)
}

func TestEngineOverSQLite_PriorityBeatsCatchAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exclude := &model.Rule{
		TeamID:         "team-1",
		Name:           "exclude large transfers",
		Enabled:        true,
		Priority:       1,
		AmountOperator: opPtr(model.AmountGreaterThan),
		AmountValue:    floatPtr(1000),
		SetExcluded:    boolPtr(true),
	}
	require.NoError(t, store.CreateRule(ctx, exclude))

	catchAll := &model.Rule{
		TeamID:          "team-1",
		Name:            "everything else is misc",
		Enabled:         true,
		Priority:        10,
		SetCategorySlug: strPtr("misc"),
	}
	require.NoError(t, store.CreateRule(ctx, catchAll))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "WIRE TRANSFER", Amount: -2500},
		model.Transaction{ID: "txn-2", TeamID: "team-1", Name: "COFFEE", Amount: -4.50},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1", "txn-2"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 2}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.True(t, txn.Internal)
	assert.Empty(t, txn.CategorySlug, "catch-all must not also fire on the excluded transaction")

	txn, err = store.GetTransactionByID(ctx, "team-1", "txn-2")
	require.NoError(t, err)
	assert.False(t, txn.Internal)
	assert.Equal(t, "misc", txn.CategorySlug)
}

func TestEngineOverSQLite_BetweenRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:          "team-1",
		Name:            "mid-size purchases",
		Enabled:         true,
		AmountOperator:  opPtr(model.AmountBetween),
		AmountValue:     floatPtr(10),
		AmountValueMax:  floatPtr(50),
		SetCategorySlug: strPtr("supplies"),
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-small", TeamID: "team-1", Name: "A", Amount: -5},
		model.Transaction{ID: "txn-mid", TeamID: "team-1", Name: "B", Amount: -25},
		model.Transaction{ID: "txn-large", TeamID: "team-1", Name: "C", Amount: -75},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-small", "txn-mid", "txn-large"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1, Unmatched: 2}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-mid")
	require.NoError(t, err)
	assert.Equal(t, "supplies", txn.CategorySlug)
}

func TestEngineOverSQLite_AutoResolveDeal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	merchant := &model.Merchant{TeamID: "team-1", Name: "Acme Corp"}
	require.NoError(t, store.CreateMerchant(ctx, merchant))
	require.NoError(t, store.CreateDeal(ctx, &model.Deal{
		TeamID:     "team-1",
		MerchantID: merchant.ID,
		DealCode:   "DEAL-42",
	}))

	rule := &model.Rule{
		TeamID:          "team-1",
		Name:            "link acme deals",
		Enabled:         true,
		MerchantMatch:   strPtr("acme"),
		SetCategorySlug: strPtr("vendor-payments"),
		AutoResolveDeal: true,
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "POS 9912", MerchantName: "Acme Corp", Amount: -500},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "vendor-payments", txn.CategorySlug)
	assert.Equal(t, "DEAL-42", txn.DealCode)
	assert.NotEmpty(t, txn.MatchedDealID)
	assert.Equal(t, model.MatchStatusAutoMatched, txn.MatchStatus)
	assert.Equal(t, "link acme deals", txn.MatchRule)
	require.NotNil(t, txn.MatchedAt)
}

func TestEngineOverSQLite_AutoResolveMissStillCategorizes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:          "team-1",
		Name:            "link acme deals",
		Enabled:         true,
		MerchantMatch:   strPtr("acme"),
		SetCategorySlug: strPtr("vendor-payments"),
		AutoResolveDeal: true,
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "ACME CORP INVOICE", Amount: -500},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "vendor-payments", txn.CategorySlug)
	assert.Empty(t, txn.DealCode)
	assert.Equal(t, model.MatchStatusUnmatched, txn.MatchStatus)
}

func TestEngineOverSQLite_TagsIdempotentAcrossRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:        "team-1",
		Name:          "tag subscriptions",
		Enabled:       true,
		MerchantMatch: strPtr("netflix"),
		AddTagIDs:     []string{"tag-recurring", "tag-media"},
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "NETFLIX.COM", Amount: -15.99},
	)

	engine := New(store, NewDealResolver(store, store))
	for i := 0; i < 2; i++ {
		result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1"})
		require.NoError(t, err)
		assert.Equal(t, Result{Applied: 1}, result)
	}

	tagIDs, err := store.GetTagIDs(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tag-recurring", "tag-media"}, tagIDs)
}

func TestEngineOverSQLite_TenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:          "team-1",
		Name:            "catch-all",
		Enabled:         true,
		SetCategorySlug: strPtr("misc"),
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-mine", TeamID: "team-1", Name: "A", Amount: -1},
		model.Transaction{ID: "txn-theirs", TeamID: "team-2", Name: "B", Amount: -1},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-mine", "txn-theirs"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1}, result)

	txn, err := store.GetTransactionByID(ctx, "team-2", "txn-theirs")
	require.NoError(t, err)
	assert.Empty(t, txn.CategorySlug, "another tenant's transaction must never be touched")
}

func TestEngineOverSQLite_TagOnlyRuleWritesNoFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := &model.Rule{
		TeamID:        "team-1",
		Name:          "tag only",
		Enabled:       true,
		MerchantMatch: strPtr("netflix"),
		AddTagIDs:     []string{"tag-recurring"},
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	seedTransactions(t, store,
		model.Transaction{ID: "txn-1", TeamID: "team-1", Name: "NETFLIX.COM", Amount: -15.99},
	)

	engine := New(store, NewDealResolver(store, store))
	result, err := engine.ApplyRules(ctx, "team-1", []string{"txn-1"})
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1}, result)

	txn, err := store.GetTransactionByID(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.Empty(t, txn.CategorySlug)
	assert.Equal(t, model.MatchStatusUnmatched, txn.MatchStatus)

	tagIDs, err := store.GetTagIDs(ctx, "team-1", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag-recurring"}, tagIDs)
}
