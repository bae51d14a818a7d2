package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// MaxAmount bounds a single expense so percentage arithmetic cannot overflow.
const MaxAmount money.Cents = 1_000_000_000_000

// PercentShare is one participant's percentage of a total.
type PercentShare struct {
	UserID  string
	Percent money.Percent
}

// AmountShare is one participant's exact amount of a total.
type AmountShare struct {
	UserID string
	Amount money.Cents
}

// Participant is a candidate share holder. Percent is read for percentage
// splits, Amount for exact splits; equal splits read neither.
type Participant struct {
	UserID  string
	Percent money.Percent
	Amount  money.Cents
}

// Request describes a candidate expense to allocate.
type Request struct {
	Total        money.Cents
	PayerID      string
	Type         models.ExpenseType
	SplitType    models.SplitType
	Participants []Participant
}

// Allocation is how a total is divided: the payer keeps PayerShare and each split
// holder owes their Split.Amount. PayerShare + sum(Splits) == total.
type Allocation struct {
	PayerShare money.Cents
	Splits     []models.Split
}

// ComputeEqualSplit divides total into count shares that differ by at most one
// cent. Remainder cents go one each to the first shares.
func ComputeEqualSplit(total money.Cents, count int) ([]money.Cents, error) {
	if err := checkTotal(total); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, noParticipants("at least one participant is required")
	}

	n := money.Cents(count)
	base, rem := total/n, total%n
	shares := make([]money.Cents, count)
	for i := range shares {
		shares[i] = base
		if money.Cents(i) < rem {
			shares[i]++
		}
	}
	return shares, nil
}

// ComputePercentageSplit returns total*percent/100 for each share, rounded so
// that the amounts add up to total exactly (largest remainder; ties go to the
// earlier share). The percentages must add up to exactly 100.
func ComputePercentageSplit(total money.Cents, shares []PercentShare) ([]money.Cents, error) {
	if err := checkTotal(total); err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, noParticipants("at least one participant is required")
	}

	var sum money.Percent
	for _, s := range shares {
		if s.Percent < 0 || s.Percent > money.Hundred {
			return nil, &SplitError{
				Kind:          KindInvalidPercentage,
				Reason:        fmt.Sprintf("percentage for %s must be between 0 and 100, got %s", s.UserID, s.Percent),
				ActualPercent: s.Percent,
				UserID:        s.UserID,
			}
		}
		sum += s.Percent
	}
	if sum != money.Hundred {
		return nil, percentMismatch(sum)
	}

	amounts := make([]money.Cents, len(shares))
	rems := make([]int64, len(shares))
	var allocated money.Cents
	for i, s := range shares {
		exact := int64(total) * int64(s.Percent)
		amounts[i] = money.Cents(exact / int64(money.Hundred))
		rems[i] = exact % int64(money.Hundred)
		allocated += amounts[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]] > rems[order[b]]
	})
	for i := 0; allocated < total; i++ {
		amounts[order[i%len(order)]]++
		allocated++
	}
	return amounts, nil
}

// ComputeExactSplit returns the given amounts unchanged after checking they add
// up to total.
func ComputeExactSplit(total money.Cents, shares []AmountShare) ([]money.Cents, error) {
	if err := checkTotal(total); err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, noParticipants("at least one participant is required")
	}

	amounts := make([]money.Cents, len(shares))
	var sum money.Cents
	for i, s := range shares {
		if s.Amount < 0 {
			err := invalidAmount(s.Amount, "amount for %s cannot be negative", s.UserID)
			err.UserID = s.UserID
			return nil, err
		}
		amounts[i] = s.Amount
		sum += s.Amount
	}
	if sum != total {
		return nil, sumMismatch(total, sum)
	}
	return amounts, nil
}

// Allocate turns a candidate expense into the payer's retained share and the
// participants' splits.
//
// Equal splits always count the payer as one of the sharers, whether or not the
// payer is listed. Percentage and exact splits count the payer only when listed;
// the payer's entry becomes PayerShare. In every mode the payer is placed first,
// so remainder cents land on the payer rather than on the debtors.
func Allocate(req Request) (Allocation, error) {
	if err := checkTotal(req.Total); err != nil {
		return Allocation{}, err
	}

	switch req.Type {
	case models.ExpenseSolo:
		return Allocation{PayerShare: req.Total}, nil
	case models.ExpenseSettlement:
		return allocateSettlement(req)
	case models.ExpenseSplit:
	default:
		return Allocation{}, invalidAmount(req.Total, "unknown expense type %q", req.Type)
	}

	payer, others, err := partition(req.PayerID, req.Participants)
	if err != nil {
		return Allocation{}, err
	}
	if len(others) == 0 {
		return Allocation{}, noParticipants("select at least one person to split with")
	}

	switch req.SplitType {
	case models.SplitEqual, "":
		shares, err := ComputeEqualSplit(req.Total, len(others)+1)
		if err != nil {
			return Allocation{}, err
		}
		alloc := Allocation{PayerShare: shares[0]}
		for i, p := range others {
			alloc.Splits = append(alloc.Splits, models.Split{UserID: p.UserID, Amount: shares[i+1]})
		}
		return alloc, nil

	case models.SplitPercentage:
		ordered := withPayerFirst(payer, others)
		shares := make([]PercentShare, len(ordered))
		for i, p := range ordered {
			shares[i] = PercentShare{UserID: p.UserID, Percent: p.Percent}
		}
		amounts, err := ComputePercentageSplit(req.Total, shares)
		if err != nil {
			return Allocation{}, err
		}
		return collect(req.PayerID, ordered, amounts, true), nil

	case models.SplitExact:
		ordered := withPayerFirst(payer, others)
		shares := make([]AmountShare, len(ordered))
		for i, p := range ordered {
			shares[i] = AmountShare{UserID: p.UserID, Amount: p.Amount}
		}
		amounts, err := ComputeExactSplit(req.Total, shares)
		if err != nil {
			return Allocation{}, err
		}
		return collect(req.PayerID, ordered, amounts, false), nil
	}

	return Allocation{}, invalidAmount(req.Total, "unknown split type %q", req.SplitType)
}

// Validate re-derives the invariants of a stored or edited expense.
func Validate(e *models.Expense) error {
	if err := checkTotal(e.Amount); err != nil {
		return err
	}

	seen := make(map[string]bool, len(e.Splits))
	for _, s := range e.Splits {
		if s.UserID == "" {
			return noParticipants("split participant id is required")
		}
		if s.UserID == e.PayerID {
			err := duplicateParticipant(s.UserID)
			err.Reason = "the payer cannot hold a split of their own expense"
			return err
		}
		if seen[s.UserID] {
			return duplicateParticipant(s.UserID)
		}
		seen[s.UserID] = true
		if s.Amount < 0 {
			err := invalidAmount(s.Amount, "amount for %s cannot be negative", s.UserID)
			err.UserID = s.UserID
			return err
		}
	}

	if e.PayerShare < 0 {
		return invalidAmount(e.PayerShare, "payer share cannot be negative")
	}
	if got := e.PayerShare + e.SplitTotal(); got != e.Amount {
		return sumMismatch(e.Amount, got)
	}

	switch e.Type {
	case models.ExpenseSolo:
		if len(e.Splits) > 0 {
			err := sumMismatch(0, e.SplitTotal())
			err.Reason = "solo expenses carry no splits"
			return err
		}
		return nil

	case models.ExpenseSettlement:
		if len(e.Splits) != 1 {
			return noParticipants("a settlement has exactly one recipient")
		}
		return nil

	case models.ExpenseSplit:
		if len(e.Splits) == 0 {
			return noParticipants("select at least one person to split with")
		}
		return validateShares(e)
	}
	return invalidAmount(e.Amount, "unknown expense type %q", e.Type)
}

func validateShares(e *models.Expense) error {
	switch e.SplitType {
	case models.SplitEqual:
		lo, hi := e.PayerShare, e.PayerShare
		for _, s := range e.Splits {
			lo, hi = min(lo, s.Amount), max(hi, s.Amount)
		}
		if hi-lo > 1 {
			return &SplitError{
				Kind:     KindUnequalShares,
				Reason:   fmt.Sprintf("split amounts must be equal, got shares from %s to %s", lo, hi),
				Expected: lo,
				Actual:   hi,
			}
		}
		return nil

	case models.SplitPercentage:
		var splitPct money.Percent
		for _, s := range e.Splits {
			if s.Percentage == nil {
				return &SplitError{
					Kind:   KindInvalidPercentage,
					Reason: fmt.Sprintf("percentage for %s is required", s.UserID),
					UserID: s.UserID,
				}
			}
			splitPct += *s.Percentage
		}
		if splitPct > money.Hundred {
			return percentMismatch(splitPct)
		}

		// Whatever the splits leave over is the payer's share.
		var shares []PercentShare
		if payerPct := money.Hundred - splitPct; payerPct > 0 {
			shares = append(shares, PercentShare{UserID: e.PayerID, Percent: payerPct})
		}
		for _, s := range e.Splits {
			shares = append(shares, PercentShare{UserID: s.UserID, Percent: *s.Percentage})
		}
		amounts, err := ComputePercentageSplit(e.Amount, shares)
		if err != nil {
			return err
		}
		offset := len(shares) - len(e.Splits)
		if offset == 1 && amounts[0] != e.PayerShare {
			return sumMismatch(amounts[0], e.PayerShare)
		}
		for i, s := range e.Splits {
			if want := amounts[i+offset]; want != s.Amount {
				err := sumMismatch(want, s.Amount)
				err.Reason = fmt.Sprintf("amount for %s must be %s for %s%%, got %s", s.UserID, want, *s.Percentage, s.Amount)
				err.UserID = s.UserID
				return err
			}
		}
		return nil

	case models.SplitExact:
		// The total check in Validate covers exact splits.
		return nil
	}
	return invalidAmount(e.Amount, "unknown split type %q", e.SplitType)
}

func allocateSettlement(req Request) (Allocation, error) {
	_, others, err := partition(req.PayerID, req.Participants)
	if err != nil {
		return Allocation{}, err
	}
	if len(others) != 1 {
		return Allocation{}, noParticipants("a settlement has exactly one recipient")
	}
	return Allocation{
		Splits: []models.Split{{UserID: others[0].UserID, Amount: req.Total, Settled: true}},
	}, nil
}

// partition separates the payer's entry from the other participants and rejects
// blanks and duplicates.
func partition(payerID string, participants []Participant) (*Participant, []Participant, error) {
	var payer *Participant
	others := make([]Participant, 0, len(participants))
	seen := make(map[string]bool, len(participants))
	for i := range participants {
		p := participants[i]
		if p.UserID == "" {
			return nil, nil, noParticipants("participant id is required")
		}
		if seen[p.UserID] {
			return nil, nil, duplicateParticipant(p.UserID)
		}
		seen[p.UserID] = true
		if p.UserID == payerID {
			payer = &participants[i]
			continue
		}
		others = append(others, p)
	}
	return payer, others, nil
}

func withPayerFirst(payer *Participant, others []Participant) []Participant {
	if payer == nil {
		return others
	}
	return append([]Participant{*payer}, others...)
}

func collect(payerID string, ordered []Participant, amounts []money.Cents, withPercent bool) Allocation {
	var alloc Allocation
	for i, p := range ordered {
		if p.UserID == payerID {
			alloc.PayerShare = amounts[i]
			continue
		}
		split := models.Split{UserID: p.UserID, Amount: amounts[i]}
		if withPercent {
			pct := p.Percent
			split.Percentage = &pct
		}
		alloc.Splits = append(alloc.Splits, split)
	}
	return alloc
}

func checkTotal(total money.Cents) error {
	if total <= 0 {
		return invalidAmount(total, "amount must be positive, got %s", total)
	}
	if total > MaxAmount {
		err := invalidAmount(total, "amount must be at most %s, got %s", MaxAmount, total)
		err.Expected = MaxAmount
		return err
	}
	return nil
}
