package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/settleup/internal/storage"
)

// AddFriend records the friendship in both directions. Adding an existing
// friend is a no-op.
func (s *SQLiteStore) AddFriend(ctx context.Context, userID, friendID string) error {
	now := time.Now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)",
				pair[0], pair[1], now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert friendship: %w", err)
			}
		}
		return nil
	})
}

// RemoveFriend deletes the friendship in both directions.
func (s *SQLiteStore) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM friendships WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete friendship: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete friendship: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("friendship %s/%s: %w", userID, friendID, storage.ErrNotFound)
		}
		return nil
	})
}

// ListFriendIDs returns the user's friends, oldest friendship first.
func (s *SQLiteStore) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT friend_id FROM friendships WHERE user_id = ? ORDER BY created_at, friend_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}
	return ids, nil
}

// AreFriends reports whether userID has friendID as a friend.
func (s *SQLiteStore) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?",
		userID, friendID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return true, nil
}
