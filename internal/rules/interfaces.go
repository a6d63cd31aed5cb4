// Package rules implements the transaction classification and matching rule engine.
package rules

import (
	"context"

	"github.com/tallyworks/tally/internal/model"
)

// RuleStore provides ordered access to rule definitions.
type RuleStore interface {
	// ListEnabledRules returns a tenant's enabled rules in evaluation order:
	// priority ascending, then created_at ascending.
	ListEnabledRules(ctx context.Context, teamID string) ([]model.Rule, error)
}

// TransactionStore provides read and write access to transactions and their
// tag associations.
type TransactionStore interface {
	// GetTransactionsByIDs fetches transactions scoped to a tenant; ids
	// outside the tenant are silently excluded.
	GetTransactionsByIDs(ctx context.Context, teamID string, ids []string) ([]model.Transaction, error)
	// UpdateTransaction applies a coalesced partial update to one transaction.
	UpdateTransaction(ctx context.Context, teamID, id string, update model.TransactionUpdate) error
	// InsertTagLink associates a tag with a transaction; duplicates are a no-op.
	InsertTagLink(ctx context.Context, teamID, transactionID, tagID string) error
}

// MerchantStore looks up merchant records by name.
type MerchantStore interface {
	// FindMerchantByName returns the merchant whose name equals the given
	// text case-insensitively, or nil when none matches.
	FindMerchantByName(ctx context.Context, teamID, name string) (*model.Merchant, error)
}

// DealStore looks up deals owned by a merchant.
type DealStore interface {
	// FindActiveDealByMerchant returns an active deal for the merchant, or
	// nil when there is none.
	FindActiveDealByMerchant(ctx context.Context, teamID, merchantID string) (*model.Deal, error)
}

// DealResolver resolves a transaction's merchant text to an active deal.
// Keeping this behind one interface means the applier never touches
// merchant/deal schema details directly.
type DealResolver interface {
	// ResolveDealForMerchant returns the deal link for the merchant text, or
	// nil when the merchant or an active deal cannot be found. A miss is an
	// expected outcome, not an error.
	ResolveDealForMerchant(ctx context.Context, teamID, merchantText string) (*model.DealLink, error)
}

// Storage is the combined persistence contract the engine needs.
type Storage interface {
	RuleStore
	TransactionStore
}
