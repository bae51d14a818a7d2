package calculator

import (
	"errors"
	"fmt"

	"github.com/mmynk/settleup/internal/money"
)

// ErrorKind classifies a split validation failure.
type ErrorKind string

const (
	KindInvalidAmount         ErrorKind = "InvalidAmount"
	KindNoParticipants        ErrorKind = "NoParticipants"
	KindSplitSumMismatch      ErrorKind = "SplitSumMismatch"
	KindPercentageSumMismatch ErrorKind = "PercentageSumMismatch"
	KindDuplicateParticipant  ErrorKind = "DuplicateParticipant"
	KindInvalidPercentage     ErrorKind = "InvalidPercentage"
	KindUnequalShares         ErrorKind = "UnequalShares"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNoParticipants        = errors.New("no participants")
	ErrSplitSumMismatch      = errors.New("split amounts do not add up to the total")
	ErrPercentageSumMismatch = errors.New("percentages do not add up to 100")
	ErrDuplicateParticipant  = errors.New("duplicate participant")
	ErrInvalidPercentage     = errors.New("invalid percentage")
	ErrUnequalShares         = errors.New("equal split shares differ")
)

var sentinels = map[ErrorKind]error{
	KindInvalidAmount:         ErrInvalidAmount,
	KindNoParticipants:        ErrNoParticipants,
	KindSplitSumMismatch:      ErrSplitSumMismatch,
	KindPercentageSumMismatch: ErrPercentageSumMismatch,
	KindDuplicateParticipant:  ErrDuplicateParticipant,
	KindInvalidPercentage:     ErrInvalidPercentage,
	KindUnequalShares:         ErrUnequalShares,
}

// SplitError is the structured result of a failed split validation. It carries
// enough context to render a field-level message.
//
// Sum mismatches fill Expected/Actual; invalid amounts fill Actual, and
// Expected when a maximum was exceeded; percentage mismatches fill
// ExpectedPercent/ActualPercent. UserID names the offending participant when
// there is one.
type SplitError struct {
	Kind   ErrorKind
	Reason string

	Expected money.Cents
	Actual   money.Cents

	ExpectedPercent money.Percent
	ActualPercent   money.Percent

	UserID string
}

func (e *SplitError) Error() string {
	return e.Reason
}

// Is matches the sentinel error for e.Kind.
func (e *SplitError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// AsSplitError unwraps err into a *SplitError.
func AsSplitError(err error) (*SplitError, bool) {
	var se *SplitError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// invalidAmount reports the rejected amount in Actual.
func invalidAmount(actual money.Cents, format string, args ...any) *SplitError {
	return &SplitError{Kind: KindInvalidAmount, Reason: fmt.Sprintf(format, args...), Actual: actual}
}

func noParticipants(reason string) *SplitError {
	return &SplitError{Kind: KindNoParticipants, Reason: reason}
}

func duplicateParticipant(userID string) *SplitError {
	return &SplitError{
		Kind:   KindDuplicateParticipant,
		Reason: fmt.Sprintf("participant %s appears more than once", userID),
		UserID: userID,
	}
}

func sumMismatch(expected, actual money.Cents) *SplitError {
	return &SplitError{
		Kind:     KindSplitSumMismatch,
		Reason:   fmt.Sprintf("split amounts must equal %s, got %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

func percentMismatch(actual money.Percent) *SplitError {
	return &SplitError{
		Kind:            KindPercentageSumMismatch,
		Reason:          fmt.Sprintf("percentages must add up to %s%%, got %s%%", money.Hundred, actual),
		ExpectedPercent: money.Hundred,
		ActualPercent:   actual,
	}
}
