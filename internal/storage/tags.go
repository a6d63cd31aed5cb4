package storage

import (
	"context"
	"fmt"
)

// InsertTagLink associates a tag with a transaction. The insert is
// idempotent: a duplicate association is silently ignored, which also makes
// it safe under concurrent attempts from overlapping batches.
func (s *SQLiteStorage) InsertTagLink(ctx context.Context, teamID, transactionID, tagID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateString(tagID, "tagID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id, team_id)
			VALUES (?, ?, ?)`,
		transactionID, tagID, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tag link: %w", err)
	}

	return nil
}

// GetTagIDs returns the tag ids associated with a transaction.
func (s *SQLiteStorage) GetTagIDs(ctx context.Context, teamID, transactionID string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_id FROM transaction_tags
			WHERE team_id = ? AND transaction_id = ?
			ORDER BY tag_id ASC`,
		teamID, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tagIDs []string
	for rows.Next() {
		var tagID string
		if err := rows.Scan(&tagID); err != nil {
			return nil, fmt.Errorf("failed to scan tag link: %w", err)
		}
		tagIDs = append(tagIDs, tagID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag links: %w", err)
	}

	return tagIDs, nil
}
