package model

import "time"

// Merchant is a tenant-scoped counterparty record.
type Merchant struct {
	CreatedAt time.Time
	ID        string
	TeamID    string
	Name      string
}

// DealStatus represents the lifecycle state of a deal.
type DealStatus string

// Deal status constants. Only active deals are eligible for auto-resolution.
const (
	DealStatusActive    DealStatus = "active"
	DealStatusCompleted DealStatus = "completed"
	DealStatusDefaulted DealStatus = "defaulted"
)

// Deal is a funding agreement owned by a merchant.
type Deal struct {
	CreatedAt  time.Time
	ID         string
	TeamID     string
	MerchantID string
	DealCode   string
	Status     DealStatus
}

// DealLink is the result of resolving a transaction's merchant text to an
// active deal.
type DealLink struct {
	DealID   string
	DealCode string
}
