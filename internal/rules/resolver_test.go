package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/model"
)

type fakeMerchantStore struct {
	merchants map[string]*model.Merchant
	err       error
}

func (f *fakeMerchantStore) FindMerchantByName(_ context.Context, _ string, name string) (*model.Merchant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.merchants[name], nil
}

type fakeDealStore struct {
	deals map[string]*model.Deal
	err   error
}

func (f *fakeDealStore) FindActiveDealByMerchant(_ context.Context, _ string, merchantID string) (*model.Deal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deals[merchantID], nil
}

func TestResolveDealForMerchant(t *testing.T) {
	merchants := &fakeMerchantStore{merchants: map[string]*model.Merchant{
		"Acme Corp": {ID: "merch-1", TeamID: "team-1", Name: "Acme Corp"},
	}}
	deals := &fakeDealStore{deals: map[string]*model.Deal{
		"merch-1": {ID: "deal-1", DealCode: "DEAL-42", Status: model.DealStatusActive},
	}}
	resolver := NewDealResolver(merchants, deals)

	t.Run("resolves through merchant to active deal", func(t *testing.T) {
		link, err := resolver.ResolveDealForMerchant(context.Background(), "team-1", "Acme Corp")
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, "deal-1", link.DealID)
		assert.Equal(t, "DEAL-42", link.DealCode)
	})

	t.Run("trims merchant text", func(t *testing.T) {
		link, err := resolver.ResolveDealForMerchant(context.Background(), "team-1", "  Acme Corp  ")
		require.NoError(t, err)
		require.NotNil(t, link)
	})

	t.Run("empty text is a miss", func(t *testing.T) {
		link, err := resolver.ResolveDealForMerchant(context.Background(), "team-1", "   ")
		require.NoError(t, err)
		assert.Nil(t, link)
	})

	t.Run("unknown merchant is a miss", func(t *testing.T) {
		link, err := resolver.ResolveDealForMerchant(context.Background(), "team-1", "Nobody Inc")
		require.NoError(t, err)
		assert.Nil(t, link)
	})

	t.Run("merchant without active deal is a miss", func(t *testing.T) {
		lonely := &fakeMerchantStore{merchants: map[string]*model.Merchant{
			"Quiet LLC": {ID: "merch-2", TeamID: "team-1", Name: "Quiet LLC"},
		}}
		r := NewDealResolver(lonely, &fakeDealStore{})
		link, err := r.ResolveDealForMerchant(context.Background(), "team-1", "Quiet LLC")
		require.NoError(t, err)
		assert.Nil(t, link)
	})
}

func TestResolveDealForMerchant_Errors(t *testing.T) {
	t.Run("merchant lookup error propagates", func(t *testing.T) {
		r := NewDealResolver(&fakeMerchantStore{err: errors.New("boom")}, &fakeDealStore{})
		_, err := r.ResolveDealForMerchant(context.Background(), "team-1", "Acme Corp")
		assert.Error(t, err)
	})

	t.Run("deal lookup error propagates", func(t *testing.T) {
		merchants := &fakeMerchantStore{merchants: map[string]*model.Merchant{
			"Acme Corp": {ID: "merch-1"},
		}}
		r := NewDealResolver(merchants, &fakeDealStore{err: errors.New("boom")})
		_, err := r.ResolveDealForMerchant(context.Background(), "team-1", "Acme Corp")
		assert.Error(t, err)
	})
}
