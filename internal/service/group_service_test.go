package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/pkg/api"
)

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")

	resp, err := env.groups.CreateGroup(context.Background(), as(alice, &api.CreateGroupRequest{
		Name:      "Roommates",
		MemberIDs: []string{bob.ID, bob.ID},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	group := resp.Msg.Group
	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	if group.OwnerID != alice.ID {
		t.Errorf("owner: expected %s, got %s", alice.ID, group.OwnerID)
	}
	if len(group.Members) != 2 {
		t.Fatalf("members: expected 2, got %d", len(group.Members))
	}
	if group.Members[0].ID != alice.ID || group.Members[1].Name != "Bob" {
		t.Errorf("unexpected members: %+v", group.Members)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}
}

func TestCreateGroupErrors(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")

	_, err := env.groups.CreateGroup(context.Background(), as(alice, &api.CreateGroupRequest{Name: ""}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = env.groups.CreateGroup(context.Background(), as(alice, &api.CreateGroupRequest{
		Name:      "Trip",
		MemberIDs: []string{"ghost"},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestGroupAccess(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")
	carol := env.register(t, "Carol")
	ctx := context.Background()

	created, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "Ski Trip",
		MemberIDs: []string{bob.ID},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := created.Msg.Group.ID

	got, err := env.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Msg.Group.Name != "Ski Trip" {
		t.Errorf("name: expected 'Ski Trip', got %q", got.Msg.Group.Name)
	}

	_, err = env.groups.GetGroup(ctx, as(carol, &api.GetGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: "missing"}))
	assertCode(t, err, connect.CodeNotFound)

	list, err := env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(list.Msg.Groups) != 1 {
		t.Errorf("bob's groups: expected 1, got %d", len(list.Msg.Groups))
	}
	list, err = env.groups.ListGroups(ctx, as(carol, &api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(list.Msg.Groups) != 0 {
		t.Errorf("carol's groups: expected 0, got %d", len(list.Msg.Groups))
	}

	_, err = env.groups.DeleteGroup(ctx, as(bob, &api.DeleteGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodePermissionDenied)

	if _, err := env.groups.DeleteGroup(ctx, as(alice, &api.DeleteGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestGetGroupBalances(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")
	carol := env.register(t, "Carol")
	outsider := env.register(t, "Dave")
	ctx := context.Background()

	created, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "House",
		MemberIDs: []string{bob.ID, carol.ID},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := created.Msg.Group.ID

	// Alice pays 90.00 for all three, Bob pays 30.00 for himself and Carol.
	env.createExpense(t, alice, api.ExpenseInput{
		Description:  "Groceries",
		Amount:       9000,
		GroupID:      groupID,
		Participants: participants(bob, carol),
	})
	env.createExpense(t, bob, api.ExpenseInput{
		Description:  "Cleaning supplies",
		Amount:       3000,
		GroupID:      groupID,
		Participants: participants(carol),
	})

	_, err = env.expenses.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{Expense: api.ExpenseInput{
		Description:  "Not in the group",
		Amount:       1000,
		GroupID:      groupID,
		Participants: participants(outsider),
	}}))
	assertCode(t, err, connect.CodeInvalidArgument)

	resp, err := env.groups.GetGroupBalances(ctx, as(carol, &api.GetGroupBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}

	net := map[string]money.Cents{}
	for _, m := range resp.Msg.Members {
		net[m.User.ID] = m.NetBalance
	}
	// Alice is owed 30 by Bob and 30 by Carol; Bob owes 30 and is owed 15;
	// Carol owes 30 + 15.
	want := map[string]money.Cents{alice.ID: 6000, bob.ID: -1500, carol.ID: -4500}
	for id, w := range want {
		if net[id] != w {
			t.Errorf("net for %s: expected %s, got %s", id, w, net[id])
		}
	}

	var cleared money.Cents
	for _, d := range resp.Msg.Debts {
		if d.To.ID != alice.ID {
			t.Errorf("unexpected creditor %s", d.To.Name)
		}
		cleared += d.Amount
	}
	if cleared != 6000 {
		t.Errorf("debts should clear 60.00, cleared %s", cleared)
	}

	_, err = env.groups.GetGroupBalances(ctx, as(outsider, &api.GetGroupBalancesRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodePermissionDenied)
}
