package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tallyworks/tally/internal/common"
	"github.com/tallyworks/tally/internal/model"
)

const transactionColumns = `id, team_id, date, name, merchant_name, amount,
	bank_account_id, category_slug, internal, assigned_id,
	deal_code, matched_deal_id, match_status, match_rule, matched_at`

// SaveTransactions persists a batch of ingested transactions. Existing ids
// are left untouched so re-imports are safe.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, team_id, date, name, merchant_name, amount,
			bank_account_id, category_slug, internal, assigned_id, match_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		status := txn.MatchStatus
		if status == "" {
			status = model.MatchStatusUnmatched
		}
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.TeamID, txn.Date, txn.Name,
			emptyToNullString(txn.MerchantName), txn.Amount,
			emptyToNullString(txn.BankAccountID), emptyToNullString(txn.CategorySlug),
			txn.Internal, emptyToNullString(txn.AssignedID), string(status),
		); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}

	return nil
}

// GetTransactionByID retrieves a single transaction within a tenant scope.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, teamID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE team_id = ? AND id = ?`

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, teamID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetTransactionsByIDs fetches the referenced transactions scoped to a
// tenant. Ids outside the tenant are silently excluded, not errored.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, teamID string, ids []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE team_id = ? AND id IN (` + placeholders + `)
		ORDER BY date ASC, id ASC`

	args := make([]any, 0, len(ids)+1)
	args = append(args, teamID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// UpdateTransaction applies a coalesced partial update to one transaction so
// all of a matched rule's field effects land in a single write.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, teamID, id string, update model.TransactionUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if update.IsZero() {
		return nil
	}

	var (
		clauses []string
		args    []any
	)

	appendSet := func(column string, value any) {
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
	}

	if update.CategorySlug != nil {
		appendSet("category_slug", *update.CategorySlug)
	}
	if update.MerchantName != nil {
		appendSet("merchant_name", *update.MerchantName)
	}
	if update.Internal != nil {
		appendSet("internal", *update.Internal)
	}
	if update.AssignedID != nil {
		appendSet("assigned_id", *update.AssignedID)
	}
	if update.DealCode != nil {
		appendSet("deal_code", *update.DealCode)
	}
	if update.MatchedDealID != nil {
		appendSet("matched_deal_id", *update.MatchedDealID)
	}
	if update.MatchStatus != nil {
		appendSet("match_status", string(*update.MatchStatus))
	}
	if update.MatchRule != nil {
		appendSet("match_rule", *update.MatchRule)
	}
	if update.MatchedAt != nil {
		appendSet("matched_at", *update.MatchedAt)
	}

	query := "UPDATE transactions SET " + strings.Join(clauses, ", ") + " WHERE team_id = ? AND id = ?"
	args = append(args, teamID, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s in team %s %w", id, teamID, common.ErrNotFound)
	}

	return nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		merchantName  sql.NullString
		bankAccountID sql.NullString
		categorySlug  sql.NullString
		assignedID    sql.NullString
		dealCode      sql.NullString
		matchedDealID sql.NullString
		matchStatus   string
		matchRule     sql.NullString
		matchedAt     sql.NullTime
	)

	err := row.Scan(
		&txn.ID, &txn.TeamID, &txn.Date, &txn.Name, &merchantName, &txn.Amount,
		&bankAccountID, &categorySlug, &txn.Internal, &assignedID,
		&dealCode, &matchedDealID, &matchStatus, &matchRule, &matchedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.MerchantName = merchantName.String
	txn.BankAccountID = bankAccountID.String
	txn.CategorySlug = categorySlug.String
	txn.AssignedID = assignedID.String
	txn.DealCode = dealCode.String
	txn.MatchedDealID = matchedDealID.String
	txn.MatchStatus = model.MatchStatus(matchStatus)
	txn.MatchRule = matchRule.String
	if matchedAt.Valid {
		matched := matchedAt.Time
		txn.MatchedAt = &matched
	}

	return &txn, nil
}

func emptyToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
