package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// RecordActivity appends an activity to the feed of each participant.
func (s *SQLiteStore) RecordActivity(ctx context.Context, activity *models.Activity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertActivity(ctx, tx, activity)
	})
}

// ListActivity returns the user's feed, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, userID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.type, a.expense_id, a.actor_id, a.actor_name, a.description, a.amount, a.created_at,
		        (SELECT group_concat(user_id) FROM activity_participants WHERE activity_id = a.id)
		 FROM activities a
		 JOIN activity_participants p ON p.activity_id = a.id
		 WHERE p.user_id = ?
		 ORDER BY a.created_at DESC, a.rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var (
			a            models.Activity
			typ          string
			amount       int64
			participants sql.NullString
		)
		if err := rows.Scan(&a.ID, &typ, &a.ExpenseID, &a.ActorID, &a.ActorName, &a.Description,
			&amount, &a.CreatedAt, &participants); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Type = models.ActivityType(typ)
		a.Amount = money.Cents(amount)
		if participants.Valid && participants.String != "" {
			a.Participants = strings.Split(participants.String, ",")
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return activities, nil
}

func insertActivity(ctx context.Context, db execer, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO activities (id, type, expense_id, actor_id, actor_name, description, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.ExpenseID, a.ActorID, a.ActorName, a.Description, int64(a.Amount), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	seen := make(map[string]bool, len(a.Participants)+1)
	for _, userID := range append([]string{a.ActorID}, a.Participants...) {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		_, err := db.ExecContext(ctx,
			"INSERT INTO activity_participants (activity_id, user_id) VALUES (?, ?)",
			a.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity participant: %w", err)
		}
	}
	return nil
}
