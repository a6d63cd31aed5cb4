package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyworks/tally/internal/model"
)

const ruleColumns = `id, team_id, name, enabled, priority,
	merchant_match, merchant_match_type,
	amount_operator, amount_value, amount_value_max,
	account_id, date_start, date_end,
	set_category_slug, set_merchant_name, add_tag_ids,
	set_excluded, set_assigned_id, set_deal_code, auto_resolve_deal,
	created_at, updated_at`

// CreateRule inserts a new rule, applying defaults for unset fields and
// assigning a fresh id.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if rule != nil && rule.MerchantMatchType == "" {
		rule.MerchantMatchType = model.MatchContains
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	tagsJSON, err := tagIDsToNullString(rule.AddTagIDs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO transaction_rules (
			id, team_id, name, enabled, priority,
			merchant_match, merchant_match_type,
			amount_operator, amount_value, amount_value_max,
			account_id, date_start, date_end,
			set_category_slug, set_merchant_name, add_tag_ids,
			set_excluded, set_assigned_id, set_deal_code, auto_resolve_deal,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID, rule.TeamID, rule.Name, rule.Enabled, rule.Priority,
		rule.MerchantMatch, string(rule.MerchantMatchType),
		operatorToNullString(rule.AmountOperator), rule.AmountValue, rule.AmountValueMax,
		rule.AccountID, rule.DateStart, rule.DateEnd,
		rule.SetCategorySlug, rule.SetMerchantName, tagsJSON,
		rule.SetExcluded, rule.SetAssignedID, rule.SetDealCode, rule.AutoResolveDeal,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now

	return nil
}

// GetRule retrieves a rule by id within a tenant scope.
func (s *SQLiteStorage) GetRule(ctx context.Context, teamID, id string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM transaction_rules WHERE team_id = ? AND id = ?`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, teamID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListRules retrieves all rules for a tenant, newest first. This is the
// management view; evaluation order comes from ListEnabledRules.
func (s *SQLiteStorage) ListRules(ctx context.Context, teamID string) ([]model.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM transaction_rules
		WHERE team_id = ?
		ORDER BY created_at DESC, id DESC`

	return s.queryRules(ctx, teamID, query)
}

// ListEnabledRules retrieves enabled rules for a tenant in evaluation order:
// priority ascending, then created_at ascending as a stable tie-break, then
// id so ordering is deterministic even for rules created in the same instant.
func (s *SQLiteStorage) ListEnabledRules(ctx context.Context, teamID string) ([]model.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM transaction_rules
		WHERE team_id = ? AND enabled = 1
		ORDER BY priority ASC, created_at ASC, id ASC`

	return s.queryRules(ctx, teamID, query)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, teamID, query string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpdateRule applies a partial update to a rule and returns the updated
// record. Returns ErrRuleNotFound when the id is not owned by the tenant.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, teamID, id string, update model.RuleUpdate) (*model.Rule, error) {
	rule, err := s.GetRule(ctx, teamID, id)
	if err != nil {
		return nil, err
	}

	update.ApplyTo(rule)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	tagsJSON, err := tagIDsToNullString(rule.AddTagIDs)
	if err != nil {
		return nil, err
	}

	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE transaction_rules SET
			name = ?, enabled = ?, priority = ?,
			merchant_match = ?, merchant_match_type = ?,
			amount_operator = ?, amount_value = ?, amount_value_max = ?,
			account_id = ?, date_start = ?, date_end = ?,
			set_category_slug = ?, set_merchant_name = ?, add_tag_ids = ?,
			set_excluded = ?, set_assigned_id = ?, set_deal_code = ?, auto_resolve_deal = ?,
			updated_at = ?
		WHERE team_id = ? AND id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Enabled, rule.Priority,
		rule.MerchantMatch, string(rule.MerchantMatchType),
		operatorToNullString(rule.AmountOperator), rule.AmountValue, rule.AmountValueMax,
		rule.AccountID, rule.DateStart, rule.DateEnd,
		rule.SetCategorySlug, rule.SetMerchantName, tagsJSON,
		rule.SetExcluded, rule.SetAssignedID, rule.SetDealCode, rule.AutoResolveDeal,
		rule.UpdatedAt,
		teamID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrRuleNotFound
	}

	return rule, nil
}

// DeleteRule deletes a rule and returns the deleted record, or
// ErrRuleNotFound when the id is not owned by the tenant.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, teamID, id string) (*model.Rule, error) {
	rule, err := s.GetRule(ctx, teamID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM transaction_rules WHERE team_id = ? AND id = ?", teamID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrRuleNotFound
	}

	return rule, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var (
		rule           model.Rule
		merchantMatch  sql.NullString
		matchType      string
		amountOperator sql.NullString
		amountValue    sql.NullFloat64
		amountValueMax sql.NullFloat64
		accountID      sql.NullString
		dateStart      sql.NullTime
		dateEnd        sql.NullTime
		categorySlug   sql.NullString
		merchantName   sql.NullString
		tagsJSON       sql.NullString
		excluded       sql.NullBool
		assignedID     sql.NullString
		dealCode       sql.NullString
	)

	err := row.Scan(
		&rule.ID, &rule.TeamID, &rule.Name, &rule.Enabled, &rule.Priority,
		&merchantMatch, &matchType,
		&amountOperator, &amountValue, &amountValueMax,
		&accountID, &dateStart, &dateEnd,
		&categorySlug, &merchantName, &tagsJSON,
		&excluded, &assignedID, &dealCode, &rule.AutoResolveDeal,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MerchantMatchType = model.MerchantMatchType(matchType)
	rule.MerchantMatch = nullStringPtr(merchantMatch)
	rule.AccountID = nullStringPtr(accountID)
	rule.SetCategorySlug = nullStringPtr(categorySlug)
	rule.SetMerchantName = nullStringPtr(merchantName)
	rule.SetAssignedID = nullStringPtr(assignedID)
	rule.SetDealCode = nullStringPtr(dealCode)

	if amountOperator.Valid {
		op := model.AmountOperator(amountOperator.String)
		rule.AmountOperator = &op
	}
	if amountValue.Valid {
		rule.AmountValue = &amountValue.Float64
	}
	if amountValueMax.Valid {
		rule.AmountValueMax = &amountValueMax.Float64
	}
	if dateStart.Valid {
		rule.DateStart = &dateStart.Time
	}
	if dateEnd.Valid {
		rule.DateEnd = &dateEnd.Time
	}
	if excluded.Valid {
		rule.SetExcluded = &excluded.Bool
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rule.AddTagIDs); err != nil {
			return nil, fmt.Errorf("failed to decode tag ids: %w", err)
		}
	}

	return &rule, nil
}

// tagIDsToNullString encodes a tag id set as a JSON column value.
func tagIDsToNullString(tagIDs []string) (sql.NullString, error) {
	if len(tagIDs) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tagIDs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode tag ids: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func operatorToNullString(op *model.AmountOperator) sql.NullString {
	if op == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*op), Valid: true}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
