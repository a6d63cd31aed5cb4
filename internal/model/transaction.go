package model

import (
	"strings"
	"time"
)

// MatchStatus tracks how a transaction was linked to a deal.
type MatchStatus string

// Match status constants.
const (
	MatchStatusUnmatched     MatchStatus = "unmatched"
	MatchStatusAutoMatched   MatchStatus = "auto_matched"
	MatchStatusManualMatched MatchStatus = "manual_matched"
)

// Transaction represents a single ingested bank transaction.
type Transaction struct {
	Date          time.Time
	MatchedAt     *time.Time
	ID            string
	TeamID        string
	Name          string // Raw transaction description
	MerchantName  string // Provider-assigned merchant name, may be empty
	BankAccountID string
	CategorySlug  string
	AssignedID    string
	DealCode      string
	MatchedDealID string
	MatchStatus   MatchStatus
	MatchRule     string
	Amount        float64
	Internal      bool // Excluded from reporting
}

// EffectiveMerchant returns the text rules match against: the provider
// merchant name when present, otherwise the raw description.
func (t *Transaction) EffectiveMerchant() string {
	if m := strings.TrimSpace(t.MerchantName); m != "" {
		return m
	}
	return strings.TrimSpace(t.Name)
}

// TransactionUpdate describes a partial update to a transaction. Nil fields
// are left unchanged, so a matched rule's effects coalesce into one write.
type TransactionUpdate struct {
	CategorySlug  *string
	MerchantName  *string
	Internal      *bool
	AssignedID    *string
	DealCode      *string
	MatchedDealID *string
	MatchStatus   *MatchStatus
	MatchRule     *string
	MatchedAt     *time.Time
}

// IsZero reports whether the update would change nothing.
func (u TransactionUpdate) IsZero() bool {
	return u.CategorySlug == nil &&
		u.MerchantName == nil &&
		u.Internal == nil &&
		u.AssignedID == nil &&
		u.DealCode == nil &&
		u.MatchedDealID == nil &&
		u.MatchStatus == nil &&
		u.MatchRule == nil &&
		u.MatchedAt == nil
}
