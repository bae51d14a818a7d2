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
	"github.com/mmynk/settleup/internal/storage"
)

const expenseColumns = "e.id, e.description, e.amount, e.payer_id, e.group_id, e.type, e.split_type, " +
	"e.payer_share, e.label, e.date, e.created_at, e.updated_at"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateExpense persists a new expense and its splits.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	expense.UpdatedAt = expense.CreatedAt
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	if expense.Label == "" {
		expense.Label = models.DefaultLabel
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, description, amount, payer_id, group_id, type, split_type,
			                       payer_share, label, date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.Description, int64(expense.Amount), expense.PayerID, nullString(expense.GroupID),
			string(expense.Type), string(expense.SplitType), int64(expense.PayerShare), string(expense.Label),
			expense.Date.UnixMilli(), expense.CreatedAt.UnixMilli(), expense.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}
		return insertSplits(ctx, tx, expense)
	})
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses e WHERE e.id = ?",
		expenseID,
	))
	if err != nil {
		return nil, notFound(err, "expense", expenseID)
	}

	if err := s.loadSplits(ctx, []*models.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns the expenses a user paid or holds a split of, newest
// date first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, filter storage.ExpenseFilter) ([]*models.Expense, error) {
	where := []string{"(e.payer_id = ? OR EXISTS (SELECT 1 FROM splits s WHERE s.expense_id = e.id AND s.user_id = ?))"}
	args := []any{filter.UserID, filter.UserID}

	if filter.GroupID != "" {
		where = append(where, "e.group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.Label != "" {
		where = append(where, "e.label = ?")
		args = append(args, string(filter.Label))
	}
	if len(filter.Types) > 0 {
		where = append(where, "e.type IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}

	return s.queryExpenses(ctx, strings.Join(where, " AND "), args...)
}

// ListGroupExpenses returns every expense in a group, newest date first.
func (s *SQLiteStore) ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	return s.queryExpenses(ctx, "e.group_id = ?", groupID)
}

// UpdateExpense replaces an expense's fields and splits.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if expense.Label == "" {
		expense.Label = models.DefaultLabel
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET description = ?, amount = ?, group_id = ?, type = ?, split_type = ?,
			                     payer_share = ?, label = ?, date = ?, updated_at = ?
			 WHERE id = ?`,
			expense.Description, int64(expense.Amount), nullString(expense.GroupID), string(expense.Type),
			string(expense.SplitType), int64(expense.PayerShare), string(expense.Label),
			expense.Date.UnixMilli(), expense.UpdatedAt.UnixMilli(), expense.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE expense_id = ?", expense.ID); err != nil {
			return fmt.Errorf("failed to delete splits: %w", err)
		}
		return insertSplits(ctx, tx, expense)
	})
}

// DeleteExpense removes an expense and its splits. It reports whether the
// expense existed.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	return n > 0, nil
}

// SettleSplit marks one split settled and records the activity.
func (s *SQLiteStore) SettleSplit(ctx context.Context, expenseID, userID string, activity *models.Activity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE splits SET settled = 1 WHERE expense_id = ? AND user_id = ? AND settled = 0",
			expenseID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to settle split: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to settle split: %w", err)
		}
		if n == 0 {
			var exists bool
			err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM splits WHERE expense_id = ? AND user_id = ?)",
				expenseID, userID,
			).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check split: %w", err)
			}
			if exists {
				return fmt.Errorf("split of %s for %s: %w", expenseID, userID, storage.ErrAlreadySettled)
			}
			return fmt.Errorf("split of %s for %s: %w", expenseID, userID, storage.ErrNotFound)
		}

		if activity != nil {
			return insertActivity(ctx, tx, activity)
		}
		return nil
	})
}

// SettleUp settles every open split between two users in either direction.
// Once the open totals are known, record is asked for the settlement expense
// and activity to store alongside; either may be nil.
func (s *SQLiteStore) SettleUp(ctx context.Context, userID, friendID string, record storage.SettleUpRecorder) (storage.SettleUpResult, error) {
	var result storage.SettleUpResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if result.OwedToUser, err = openTotal(ctx, tx, userID, friendID); err != nil {
			return err
		}
		if result.OwedByUser, err = openTotal(ctx, tx, friendID, userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE splits SET settled = 1
			 WHERE settled = 0 AND (
			     (user_id = ? AND expense_id IN (SELECT id FROM expenses WHERE type = 'split' AND payer_id = ?))
			  OR (user_id = ? AND expense_id IN (SELECT id FROM expenses WHERE type = 'split' AND payer_id = ?))
			 )`,
			friendID, userID, userID, friendID,
		)
		if err != nil {
			return fmt.Errorf("failed to settle splits: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to settle splits: %w", err)
		}
		result.Settled = int(n)

		if record == nil || result.Settled == 0 {
			return nil
		}
		settlement, activity := record(result)
		if settlement != nil {
			settlement.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
			settlement.UpdatedAt = settlement.CreatedAt
			if settlement.ID == "" {
				settlement.ID = uuid.New().String()
			}
			if settlement.Date.IsZero() {
				settlement.Date = settlement.CreatedAt
			}
			if settlement.Label == "" {
				settlement.Label = models.DefaultLabel
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO expenses (id, description, amount, payer_id, group_id, type, split_type,
				                       payer_share, label, date, created_at, updated_at)
				 VALUES (?, ?, ?, ?, NULL, ?, '', 0, ?, ?, ?, ?)`,
				settlement.ID, settlement.Description, int64(settlement.Amount), settlement.PayerID,
				string(models.ExpenseSettlement), string(settlement.Label),
				settlement.Date.UnixMilli(), settlement.CreatedAt.UnixMilli(), settlement.UpdatedAt.UnixMilli(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert settlement: %w", err)
			}
			if err := insertSplits(ctx, tx, settlement); err != nil {
				return err
			}
		}
		if activity != nil {
			if settlement != nil {
				activity.ExpenseID = settlement.ID
			}
			return insertActivity(ctx, tx, activity)
		}
		return nil
	})
	if err != nil {
		return storage.SettleUpResult{}, err
	}
	return result, nil
}

// openTotal sums the open split amounts debtorID owes on payerID's expenses.
func openTotal(ctx context.Context, tx *sql.Tx, payerID, debtorID string) (money.Cents, error) {
	var total int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(s.amount), 0)
		 FROM splits s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.type = 'split' AND e.payer_id = ? AND s.user_id = ? AND s.settled = 0`,
		payerID, debtorID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum open splits: %w", err)
	}
	return money.Cents(total), nil
}

func (s *SQLiteStore) queryExpenses(ctx context.Context, where string, args ...any) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses e WHERE "+where+
			" ORDER BY e.date DESC, e.created_at DESC, e.rowid DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if err := s.loadSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// loadSplits fills in the splits of every expense with a single query.
func (s *SQLiteStore) loadSplits(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	byID := make(map[string]*models.Expense, len(expenses))
	ids := make([]string, len(expenses))
	for i, e := range expenses {
		byID[e.ID] = e
		ids[i] = e.ID
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id, user_id, amount, percentage, settled FROM splits WHERE expense_id IN ("+
			placeholders(len(ids))+") ORDER BY expense_id, position",
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			expenseID string
			split     models.Split
			amount    int64
			pct       sql.NullInt64
		)
		if err := rows.Scan(&expenseID, &split.UserID, &amount, &pct, &split.Settled); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		split.Amount = money.Cents(amount)
		if pct.Valid {
			p := money.Percent(pct.Int64)
			split.Percentage = &p
		}
		if e, ok := byID[expenseID]; ok {
			e.Splits = append(e.Splits, split)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate splits: %w", err)
	}
	return nil
}

func insertSplits(ctx context.Context, db execer, expense *models.Expense) error {
	for i, split := range expense.Splits {
		var pct any
		if split.Percentage != nil {
			pct = int64(*split.Percentage)
		}
		_, err := db.ExecContext(ctx,
			"INSERT INTO splits (expense_id, user_id, position, amount, percentage, settled) VALUES (?, ?, ?, ?, ?, ?)",
			expense.ID, split.UserID, i, int64(split.Amount), pct, split.Settled,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	var (
		e                          models.Expense
		amount, payerShare         int64
		groupID                    sql.NullString
		typ, splitType, label      string
		date, createdAt, updatedAt int64
	)
	err := row.Scan(&e.ID, &e.Description, &amount, &e.PayerID, &groupID, &typ, &splitType,
		&payerShare, &label, &date, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Amount = money.Cents(amount)
	e.PayerShare = money.Cents(payerShare)
	e.GroupID = groupID.String
	e.Type = models.ExpenseType(typ)
	e.SplitType = models.SplitType(splitType)
	e.Label = models.Label(label)
	e.Date = time.UnixMilli(date).UTC()
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
