package api

import (
	"time"

	"github.com/mmynk/settleup/internal/money"
)

// User is a registered account as shown to other users.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// UserRef names a user who may no longer exist. Name is "Unknown" when the
// user could not be resolved.
type UserRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Split is one participant's share.
type Split struct {
	User       UserRef        `json:"user"`
	Amount     money.Cents    `json:"amount"`
	Percentage *money.Percent `json:"percentage,omitempty"`
	Settled    bool           `json:"settled"`
}

// Expense is a stored expense with its participants resolved.
type Expense struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`
	Payer       UserRef     `json:"payer"`
	GroupID     string      `json:"group_id,omitempty"`
	Type        string      `json:"type"`
	SplitType   string      `json:"split_type,omitempty"`
	PayerShare  money.Cents `json:"payer_share"`
	Label       string      `json:"label"`
	Splits      []Split     `json:"splits"`
	Date        time.Time   `json:"date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Participant is a candidate share holder. Percent is read for percentage
// splits and Amount for exact splits.
type Participant struct {
	UserID  string        `json:"user_id" validate:"required"`
	Percent money.Percent `json:"percent,omitempty"`
	Amount  money.Cents   `json:"amount,omitempty"`
}

// ExpenseInput is a candidate expense. The caller is always the payer. Type
// defaults to "split", SplitType to "equal" and Label to "other".
type ExpenseInput struct {
	Description  string        `json:"description" validate:"required,max=200"`
	Amount       money.Cents   `json:"amount"`
	GroupID      string        `json:"group_id,omitempty"`
	Type         string        `json:"type,omitempty" validate:"omitempty,oneof=solo split settlement"`
	SplitType    string        `json:"split_type,omitempty" validate:"omitempty,oneof=equal percentage exact"`
	Label        string        `json:"label,omitempty"`
	Date         *time.Time    `json:"date,omitempty"`
	Participants []Participant `json:"participants" validate:"dive"`
}

// SplitError explains why a candidate expense was rejected.
type SplitError struct {
	Kind            string         `json:"kind"`
	Reason          string         `json:"reason"`
	UserID          string         `json:"user_id,omitempty"`
	Expected        *money.Cents   `json:"expected,omitempty"`
	Actual          *money.Cents   `json:"actual,omitempty"`
	ExpectedPercent *money.Percent `json:"expected_percent,omitempty"`
	ActualPercent   *money.Percent `json:"actual_percent,omitempty"`
}

// Group is a named set of members.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Members   []UserRef `json:"members"`
	CreatedAt int64     `json:"created_at"`
}

// Balance is the open position with one counterparty.
type Balance struct {
	User      UserRef     `json:"user"`
	YouOwe    money.Cents `json:"you_owe"`
	TheyOwe   money.Cents `json:"they_owe"`
	NetAmount money.Cents `json:"net_amount"`
}

// MemberBalance is a group member's position.
type MemberBalance struct {
	User       UserRef     `json:"user"`
	NetBalance money.Cents `json:"net_balance"`
	TotalPaid  money.Cents `json:"total_paid"`
	TotalOwed  money.Cents `json:"total_owed"`
}

// Debt is a suggested payment between group members.
type Debt struct {
	From   UserRef     `json:"from"`
	To     UserRef     `json:"to"`
	Amount money.Cents `json:"amount"`
}

// Activity is a feed entry.
type Activity struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	ExpenseID   string      `json:"expense_id"`
	Actor       UserRef     `json:"actor"`
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`
	CreatedAt   time.Time   `json:"created_at"`
}
