package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/tallyworks/tally/internal/model"
)

// dealResolver chains a merchant lookup into an active-deal lookup.
type dealResolver struct {
	merchants MerchantStore
	deals     DealStore
}

// NewDealResolver creates a DealResolver backed by the given stores.
func NewDealResolver(merchants MerchantStore, deals DealStore) DealResolver {
	return &dealResolver{
		merchants: merchants,
		deals:     deals,
	}
}

// ResolveDealForMerchant finds a merchant by case-insensitive exact name
// match, then an active deal owned by that merchant. Either lookup coming up
// empty returns (nil, nil).
func (r *dealResolver) ResolveDealForMerchant(ctx context.Context, teamID, merchantText string) (*model.DealLink, error) {
	name := strings.TrimSpace(merchantText)
	if name == "" {
		return nil, nil
	}

	merchant, err := r.merchants.FindMerchantByName(ctx, teamID, name)
	if err != nil {
		return nil, fmt.Errorf("merchant lookup failed: %w", err)
	}
	if merchant == nil {
		return nil, nil
	}

	deal, err := r.deals.FindActiveDealByMerchant(ctx, teamID, merchant.ID)
	if err != nil {
		return nil, fmt.Errorf("deal lookup failed: %w", err)
	}
	if deal == nil {
		return nil, nil
	}

	return &model.DealLink{
		DealID:   deal.ID,
		DealCode: deal.DealCode,
	}, nil
}
