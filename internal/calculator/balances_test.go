package calculator

import (
	"testing"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

func splitExpense(payer string, splits ...models.Split) *models.Expense {
	e := &models.Expense{PayerID: payer, Type: models.ExpenseSplit, SplitType: models.SplitExact, Splits: splits}
	e.Amount = e.SplitTotal()
	return e
}

func TestComputeBalances(t *testing.T) {
	expenses := []*models.Expense{
		// me paid, alice and bob owe me
		splitExpense("me", models.Split{UserID: "alice", Amount: 3000}, models.Split{UserID: "bob", Amount: 1500}),
		// alice paid, I owe alice
		splitExpense("alice", models.Split{UserID: "me", Amount: 1000}, models.Split{UserID: "carol", Amount: 700}),
		// settled share does not count
		splitExpense("me", models.Split{UserID: "bob", Amount: 9999, Settled: true}),
		// expense between others does not involve me
		splitExpense("carol", models.Split{UserID: "bob", Amount: 500}),
		// settlement records are ignored
		{Type: models.ExpenseSettlement, PayerID: "bob", Amount: 1500, Splits: []models.Split{{UserID: "me", Amount: 1500, Settled: true}}},
		// solo expenses are ignored
		{Type: models.ExpenseSolo, PayerID: "me", Amount: 4000, PayerShare: 4000},
	}

	got := ComputeBalances(expenses, "me")

	if got.TotalOwed != 4500 {
		t.Errorf("TotalOwed = %v, want 45.00", got.TotalOwed)
	}
	if got.TotalOwe != 1000 {
		t.Errorf("TotalOwe = %v, want 10.00", got.TotalOwe)
	}
	if got.NetBalance != 3500 {
		t.Errorf("NetBalance = %v, want 35.00", got.NetBalance)
	}

	alice := got.Counterparties["alice"]
	if alice == nil {
		t.Fatal("missing counterparty alice")
	}
	if alice.TheyOwe != 3000 || alice.YouOwe != 1000 || alice.NetAmount != 2000 {
		t.Errorf("alice = %+v, want TheyOwe 30.00 YouOwe 10.00 Net 20.00", *alice)
	}
	if bob := got.Counterparties["bob"]; bob == nil || bob.NetAmount != 1500 {
		t.Errorf("bob = %+v, want Net 15.00", bob)
	}
	if _, ok := got.Counterparties["carol"]; ok {
		t.Error("carol shares no open split with me and must not appear")
	}
}

func TestComputeBalances_Empty(t *testing.T) {
	got := ComputeBalances(nil, "me")
	if got.TotalOwed != 0 || got.TotalOwe != 0 || got.NetBalance != 0 {
		t.Errorf("ComputeBalances(nil) = %+v, want zeros", got)
	}
	if len(got.Counterparties) != 0 {
		t.Errorf("expected no counterparties, got %d", len(got.Counterparties))
	}
}

func TestComputeBalances_IgnoresPayerSplit(t *testing.T) {
	// Malformed: the payer holds a split of their own expense.
	e := splitExpense("me", models.Split{UserID: "me", Amount: 500}, models.Split{UserID: "alice", Amount: 500})
	got := ComputeBalances([]*models.Expense{e}, "me")
	if got.TotalOwed != 500 || got.TotalOwe != 0 {
		t.Errorf("got owed %v owe %v, want 5.00 and 0.00", got.TotalOwed, got.TotalOwe)
	}
	if _, ok := got.Counterparties["me"]; ok {
		t.Error("user must not be their own counterparty")
	}
}

func TestBalancesSorted(t *testing.T) {
	b := Balances{Counterparties: map[string]*CounterpartyBalance{
		"a": {UserID: "a", NetAmount: 100},
		"b": {UserID: "b", NetAmount: -500},
		"c": {UserID: "c", NetAmount: 500},
		"d": {UserID: "d", NetAmount: 0},
	}}

	got := b.Sorted()
	want := []string{"b", "c", "a", "d"}
	for i, id := range want {
		if got[i].UserID != id {
			t.Errorf("Sorted()[%d] = %s, want %s", i, got[i].UserID, id)
		}
	}
}

func TestComputeGroupBalances(t *testing.T) {
	tests := []struct {
		name      string
		expenses  []*models.Expense
		wantNet   map[string]money.Cents
		wantEdges []DebtEdge
	}{
		{
			name: "single payer",
			expenses: []*models.Expense{
				splitExpense("alice", models.Split{UserID: "bob", Amount: 3000}, models.Split{UserID: "carol", Amount: 3000}),
			},
			wantNet: map[string]money.Cents{"alice": 6000, "bob": -3000, "carol": -3000},
			wantEdges: []DebtEdge{
				{From: "bob", To: "alice", Amount: 3000},
				{From: "carol", To: "alice", Amount: 3000},
			},
		},
		{
			name: "debts net out",
			expenses: []*models.Expense{
				splitExpense("alice", models.Split{UserID: "bob", Amount: 5000}),
				splitExpense("bob", models.Split{UserID: "alice", Amount: 2000}),
			},
			wantNet:   map[string]money.Cents{"alice": 3000, "bob": -3000},
			wantEdges: []DebtEdge{{From: "bob", To: "alice", Amount: 3000}},
		},
		{
			name: "chain simplifies",
			expenses: []*models.Expense{
				splitExpense("alice", models.Split{UserID: "bob", Amount: 1000}),
				splitExpense("bob", models.Split{UserID: "carol", Amount: 1000}),
			},
			wantNet:   map[string]money.Cents{"alice": 1000, "bob": 0, "carol": -1000},
			wantEdges: []DebtEdge{{From: "carol", To: "alice", Amount: 1000}},
		},
		{
			name: "settled splits ignored",
			expenses: []*models.Expense{
				splitExpense("alice", models.Split{UserID: "bob", Amount: 1000, Settled: true}),
			},
			wantNet: map[string]money.Cents{"alice": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, edges := ComputeGroupBalances(tt.expenses)

			if len(members) != len(tt.wantNet) {
				t.Fatalf("got %d members, want %d", len(members), len(tt.wantNet))
			}
			var total money.Cents
			for _, m := range members {
				if want := tt.wantNet[m.UserID]; m.NetBalance != want {
					t.Errorf("%s net = %v, want %v", m.UserID, m.NetBalance, want)
				}
				total += m.NetBalance
			}
			if total != 0 {
				t.Errorf("net balances sum to %v, want 0", total)
			}

			if len(edges) != len(tt.wantEdges) {
				t.Fatalf("got %d edges %+v, want %d", len(edges), edges, len(tt.wantEdges))
			}
			for i, e := range edges {
				if e != tt.wantEdges[i] {
					t.Errorf("edge[%d] = %+v, want %+v", i, e, tt.wantEdges[i])
				}
			}
		})
	}
}
