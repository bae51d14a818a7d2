package models

import "github.com/mmynk/settleup/internal/money"

// ActivityType names what happened.
type ActivityType string

const (
	ActivityExpenseCreated ActivityType = "expense_created"
	ActivityExpenseUpdated ActivityType = "expense_updated"
	ActivityExpenseDeleted ActivityType = "expense_deleted"
	ActivitySplitSettled   ActivityType = "split_settled"
	ActivitySettledUp      ActivityType = "settled_up"
)

// Activity is an audit record shown in a user's feed.
type Activity struct {
	// ID is the unique identifier for the activity (UUID format).
	ID string

	Type ActivityType

	// ExpenseID is the expense the activity is about. It may no longer exist.
	ExpenseID string

	// ActorID is the user who performed the action.
	ActorID string

	// ActorName is captured at write time so deleted users still render.
	ActorName string

	Description string

	Amount money.Cents

	// Participants are the users whose feed shows the activity.
	Participants []string

	// CreatedAt is the Unix time of the action in milliseconds.
	CreatedAt int64
}
