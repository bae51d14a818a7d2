package calculator

import (
	"sort"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// CounterpartyBalance is the running position between the current user and one
// other user.
type CounterpartyBalance struct {
	UserID    string
	YouOwe    money.Cents // current user owes the counterparty
	TheyOwe   money.Cents // counterparty owes the current user
	NetAmount money.Cents // TheyOwe - YouOwe
}

// Balances is the dashboard summary for one user.
type Balances struct {
	TotalOwed      money.Cents // others owe the user
	TotalOwe       money.Cents // the user owes others
	NetBalance     money.Cents
	Counterparties map[string]*CounterpartyBalance
}

// ComputeBalances aggregates the open splits in expenses from userID's point of
// view, in a single pass.
//
// Only split expenses count. For each unsettled split:
//   - if userID paid and the split belongs to someone else, they owe userID;
//   - if the split belongs to userID and someone else paid, userID owes them.
//
// Splits held by the payer are ignored.
func ComputeBalances(expenses []*models.Expense, userID string) Balances {
	b := Balances{Counterparties: make(map[string]*CounterpartyBalance)}

	entry := func(id string) *CounterpartyBalance {
		cb, ok := b.Counterparties[id]
		if !ok {
			cb = &CounterpartyBalance{UserID: id}
			b.Counterparties[id] = cb
		}
		return cb
	}

	for _, e := range expenses {
		if e == nil || e.Type != models.ExpenseSplit {
			continue
		}
		for _, s := range e.Splits {
			if s.Settled || s.UserID == e.PayerID {
				continue
			}
			switch userID {
			case e.PayerID:
				b.TotalOwed += s.Amount
				cb := entry(s.UserID)
				cb.TheyOwe += s.Amount
				cb.NetAmount = cb.TheyOwe - cb.YouOwe
			case s.UserID:
				b.TotalOwe += s.Amount
				cb := entry(e.PayerID)
				cb.YouOwe += s.Amount
				cb.NetAmount = cb.TheyOwe - cb.YouOwe
			}
		}
	}

	b.NetBalance = b.TotalOwed - b.TotalOwe
	return b
}

// Sorted returns the counterparties ordered by the size of the net position,
// largest first, ties broken by user ID.
func (b Balances) Sorted() []CounterpartyBalance {
	out := make([]CounterpartyBalance, 0, len(b.Counterparties))
	for _, cb := range b.Counterparties {
		out = append(out, *cb)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].NetAmount.Abs(), out[j].NetAmount.Abs()
		if ai != aj {
			return ai > aj
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Between returns the open position with friendID. The zero value
// is returned when they share no open splits.
func (b Balances) Between(friendID string) CounterpartyBalance {
	if cb, ok := b.Counterparties[friendID]; ok {
		return *cb
	}
	return CounterpartyBalance{UserID: friendID}
}

// MemberBalance is one group member's position across the group's open splits.
type MemberBalance struct {
	UserID     string
	NetBalance money.Cents // positive = is owed money, negative = owes money
	TotalPaid  money.Cents // lent to others through open splits
	TotalOwed  money.Cents // owed to others through open splits
}

// DebtEdge is a suggested payment from one member to another.
type DebtEdge struct {
	From   string // who owes
	To     string // who is owed
	Amount money.Cents
}

// ComputeGroupBalances aggregates who lent and who owes across a group's open
// splits and returns member positions ordered by user ID together with the
// simplified set of payments that would clear them.
func ComputeGroupBalances(expenses []*models.Expense) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	member := func(id string) *MemberBalance {
		mb, ok := balances[id]
		if !ok {
			mb = &MemberBalance{UserID: id}
			balances[id] = mb
		}
		return mb
	}

	for _, e := range expenses {
		if e == nil || e.Type != models.ExpenseSplit || e.PayerID == "" {
			continue
		}
		// Make sure the payer shows up even when every split is settled.
		payer := member(e.PayerID)
		for _, s := range e.Splits {
			if s.Settled || s.UserID == e.PayerID {
				continue
			}
			payer.TotalPaid += s.Amount
			member(s.UserID).TotalOwed += s.Amount
		}
	}

	out := make([]MemberBalance, 0, len(balances))
	for _, mb := range balances {
		mb.NetBalance = mb.TotalPaid - mb.TotalOwed
		out = append(out, *mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	return out, SimplifyDebts(out)
}

// SimplifyDebts matches debtors with creditors greedily, largest amounts first,
// so that the number of payments stays small. The edges clear every net balance
// exactly.
func SimplifyDebts(members []MemberBalance) []DebtEdge {
	type position struct {
		id     string
		amount money.Cents
	}
	var creditors, debtors []position
	for _, m := range members {
		switch {
		case m.NetBalance > 0:
			creditors = append(creditors, position{m.UserID, m.NetBalance})
		case m.NetBalance < 0:
			debtors = append(debtors, position{m.UserID, -m.NetBalance})
		}
	}
	byAmount := func(ps []position) func(i, j int) bool {
		return func(i, j int) bool {
			if ps[i].amount != ps[j].amount {
				return ps[i].amount > ps[j].amount
			}
			return ps[i].id < ps[j].id
		}
	}
	sort.Slice(creditors, byAmount(creditors))
	sort.Slice(debtors, byAmount(debtors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		if amount > 0 {
			edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})
		}
		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
