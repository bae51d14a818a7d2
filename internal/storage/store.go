// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a second account with the same email.
	ErrConflict = errors.New("conflict")

	// ErrAlreadySettled is returned when settling a split that is already paid.
	ErrAlreadySettled = errors.New("already settled")
)

// ExpenseFilter narrows ListExpenses.
type ExpenseFilter struct {
	// UserID selects expenses the user paid or holds a split of. Required.
	UserID string

	// GroupID restricts to one group when set.
	GroupID string

	// Label restricts to one label when set.
	Label models.Label

	// Types restricts to the given expense types when non-empty.
	Types []models.ExpenseType
}

// SettleUpResult describes what a settle-up cleared.
type SettleUpResult struct {
	// Settled is the number of splits marked settled.
	Settled int

	// OwedToUser is what the friend owed the user before settling.
	OwedToUser money.Cents

	// OwedByUser is what the user owed the friend before settling.
	OwedByUser money.Cents
}

// SettleUpRecorder builds the settlement expense and activity to store with a
// settle-up. Either return value may be nil.
type SettleUpRecorder func(result SettleUpResult) (*models.Expense, *models.Activity)

// Store defines the interface for storage operations.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	UserStore
	FriendStore
	GroupStore
	ExpenseStore
	ActivityStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID returns ErrNotFound if no user has the ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail matches case-insensitively and returns ErrNotFound if no
	// user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// UpdateUser saves name and email. Returns ErrConflict if the email is
	// taken by another user.
	UpdateUser(ctx context.Context, user *models.User) error
}

// FriendStore persists the symmetric friendship relation.
type FriendStore interface {
	// AddFriend records the friendship on both sides in one transaction.
	AddFriend(ctx context.Context, userID, friendID string) error

	// RemoveFriend removes both sides in one transaction.
	RemoveFriend(ctx context.Context, userID, friendID string) error

	ListFriendIDs(ctx context.Context, userID string) ([]string, error)

	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

// GroupStore persists groups and their members.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup returns ErrNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser returns the groups userID is a member of.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// DeleteGroup removes the group. Its expenses become personal.
	DeleteGroup(ctx context.Context, groupID string) error
}

// ExpenseStore persists expenses and their splits.
type ExpenseStore interface {
	// CreateExpense inserts the expense and its splits in one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns matching expenses, newest date first.
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]*models.Expense, error)

	// ListGroupExpenses returns every expense in the group, newest date first.
	ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, error)

	// UpdateExpense replaces the expense fields and its splits in one
	// transaction. Returns ErrNotFound if the expense does not exist.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense reports whether a row was removed.
	DeleteExpense(ctx context.Context, expenseID string) (bool, error)

	// SettleSplit marks userID's split of the expense settled and records the
	// activity in one transaction. Returns ErrNotFound if there is no such split
	// and ErrAlreadySettled if it was settled before the transaction began.
	SettleSplit(ctx context.Context, expenseID, userID string, activity *models.Activity) error

	// SettleUp marks every open split between the two users settled, inserts
	// the settlement expense and records the activity, all in one transaction.
	// record is not called when nothing was open.
	SettleUp(ctx context.Context, userID, friendID string, record SettleUpRecorder) (SettleUpResult, error)
}

// ActivityStore persists the activity feed.
type ActivityStore interface {
	RecordActivity(ctx context.Context, activity *models.Activity) error

	// ListActivity returns activities for expenses userID is involved in and
	// activities userID performed, newest first.
	ListActivity(ctx context.Context, userID string, limit int) ([]*models.Activity, error)
}
