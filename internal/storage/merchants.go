package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallyworks/tally/internal/model"
)

// CreateMerchant inserts a new merchant record.
func (s *SQLiteStorage) CreateMerchant(ctx context.Context, merchant *model.Merchant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if merchant == nil {
		return fmt.Errorf("%w: merchant", ErrNilParameter)
	}
	if err := validateString(merchant.TeamID, "team_id"); err != nil {
		return err
	}
	if err := validateString(merchant.Name, "name"); err != nil {
		return err
	}

	if merchant.ID == "" {
		merchant.ID = uuid.NewString()
	}
	merchant.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO merchants (id, team_id, name, created_at) VALUES (?, ?, ?, ?)`,
		merchant.ID, merchant.TeamID, merchant.Name, merchant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create merchant: %w", err)
	}

	return nil
}

// FindMerchantByName looks up a merchant by case-insensitive exact name
// match within a tenant scope. Returns nil when no merchant matches; a miss
// is an expected outcome, not an error.
func (s *SQLiteStorage) FindMerchantByName(ctx context.Context, teamID, name string) (*model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	var merchant model.Merchant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, created_at FROM merchants
			WHERE team_id = ? AND lower(name) = lower(?)
			LIMIT 1`,
		teamID, name,
	).Scan(&merchant.ID, &merchant.TeamID, &merchant.Name, &merchant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find merchant: %w", err)
	}

	return &merchant, nil
}

// CreateDeal inserts a new deal for a merchant.
func (s *SQLiteStorage) CreateDeal(ctx context.Context, deal *model.Deal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if deal == nil {
		return fmt.Errorf("%w: deal", ErrNilParameter)
	}
	if err := validateString(deal.TeamID, "team_id"); err != nil {
		return err
	}
	if err := validateString(deal.MerchantID, "merchant_id"); err != nil {
		return err
	}
	if err := validateString(deal.DealCode, "deal_code"); err != nil {
		return err
	}

	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	if deal.Status == "" {
		deal.Status = model.DealStatusActive
	}
	deal.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (id, team_id, merchant_id, deal_code, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		deal.ID, deal.TeamID, deal.MerchantID, deal.DealCode, string(deal.Status), deal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	return nil
}

// FindActiveDealByMerchant looks up an active deal owned by a merchant
// within a tenant scope. Returns nil when the merchant has no active deal.
func (s *SQLiteStorage) FindActiveDealByMerchant(ctx context.Context, teamID, merchantID string) (*model.Deal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if err := validateString(merchantID, "merchantID"); err != nil {
		return nil, err
	}

	var (
		deal   model.Deal
		status string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, merchant_id, deal_code, status, created_at FROM deals
			WHERE team_id = ? AND merchant_id = ? AND status = 'active'
			ORDER BY created_at ASC, id ASC
			LIMIT 1`,
		teamID, merchantID,
	).Scan(&deal.ID, &deal.TeamID, &deal.MerchantID, &deal.DealCode, &status, &deal.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active deal: %w", err)
	}

	deal.Status = model.DealStatus(status)

	return &deal, nil
}
