package models

import (
	"fmt"
	"time"

	"github.com/mmynk/settleup/internal/money"
)

// ExpenseType says who bears an expense.
type ExpenseType string

const (
	// ExpenseSolo is paid and borne entirely by the payer.
	ExpenseSolo ExpenseType = "solo"
	// ExpenseSplit is shared with participants through splits.
	ExpenseSplit ExpenseType = "split"
	// ExpenseSettlement records a direct payment between two users.
	ExpenseSettlement ExpenseType = "settlement"
)

// ParseExpenseType validates s. Empty means split.
func ParseExpenseType(s string) (ExpenseType, error) {
	switch ExpenseType(s) {
	case "":
		return ExpenseSplit, nil
	case ExpenseSolo, ExpenseSplit, ExpenseSettlement:
		return ExpenseType(s), nil
	}
	return "", fmt.Errorf("unknown expense type %q", s)
}

// SplitType says how a shared expense is divided.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitPercentage SplitType = "percentage"
	SplitExact      SplitType = "exact"
)

// ParseSplitType validates s. Empty means equal.
func ParseSplitType(s string) (SplitType, error) {
	switch SplitType(s) {
	case "":
		return SplitEqual, nil
	case SplitEqual, SplitPercentage, SplitExact:
		return SplitType(s), nil
	}
	return "", fmt.Errorf("unknown split type %q", s)
}

// Label categorises an expense.
type Label string

// Labels lists every accepted label.
var Labels = []Label{"food", "travel", "shopping", "utilities", "rent", "entertainment", "groceries", "other"}

// DefaultLabel is used when none is given.
const DefaultLabel Label = "other"

// ParseLabel validates s. Empty means DefaultLabel.
func ParseLabel(s string) (Label, error) {
	if s == "" {
		return DefaultLabel, nil
	}
	for _, l := range Labels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Expense is a cost paid by one user and optionally shared with others.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is the non-empty, user-facing text.
	Description string

	// Amount is the total cost. Always positive.
	Amount money.Cents

	// PayerID is the user who paid. Only the payer may edit or delete the expense.
	PayerID string

	// GroupID is the associated group, empty for personal expenses.
	GroupID string

	Type ExpenseType

	// SplitType is set for split expenses only.
	SplitType SplitType

	// PayerShare is the part of Amount the payer bears. Amount == PayerShare + sum(Splits).
	PayerShare money.Cents

	Label Label

	// Splits are the participants' shares, never including the payer.
	Splits []Split

	// Date is the user-editable transaction date.
	Date time.Time

	// CreatedAt is the immutable record creation time.
	CreatedAt time.Time

	UpdatedAt time.Time
}

// Split is one participant's share of a shared expense.
type Split struct {
	UserID string

	// Amount is what UserID owes the payer. Never negative.
	Amount money.Cents

	// Percentage is set for percentage splits.
	Percentage *money.Percent

	// Settled is false at creation and flips once the share is paid.
	Settled bool
}

// SplitTotal sums the split amounts.
func (e *Expense) SplitTotal() money.Cents {
	var total money.Cents
	for _, s := range e.Splits {
		total += s.Amount
	}
	return total
}

// SplitFor returns the split held by userID.
func (e *Expense) SplitFor(userID string) (*Split, bool) {
	for i := range e.Splits {
		if e.Splits[i].UserID == userID {
			return &e.Splits[i], true
		}
	}
	return nil, false
}

// Involves reports whether userID is the payer or holds a split.
func (e *Expense) Involves(userID string) bool {
	if e.PayerID == userID {
		return true
	}
	_, ok := e.SplitFor(userID)
	return ok
}

// FullySettled reports whether every split is settled.
func (e *Expense) FullySettled() bool {
	for _, s := range e.Splits {
		if !s.Settled {
			return false
		}
	}
	return true
}

// ParticipantIDs returns the split holders in order.
func (e *Expense) ParticipantIDs() []string {
	ids := make([]string, len(e.Splits))
	for i, s := range e.Splits {
		ids[i] = s.UserID
	}
	return ids
}
