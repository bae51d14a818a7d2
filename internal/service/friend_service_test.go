package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/pkg/api"
)

func TestSearchUser(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")
	ctx := context.Background()

	resp, err := env.friends.SearchUser(ctx, as(alice, &api.SearchUserRequest{Email: "BOB@example.com"}))
	if err != nil {
		t.Fatalf("SearchUser failed: %v", err)
	}
	if resp.Msg.User.ID != bob.ID {
		t.Errorf("found %s, want %s", resp.Msg.User.ID, bob.ID)
	}

	_, err = env.friends.SearchUser(ctx, as(alice, &api.SearchUserRequest{Email: alice.Email}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = env.friends.SearchUser(ctx, as(alice, &api.SearchUserRequest{Email: "nobody@example.com"}))
	assertCode(t, err, connect.CodeNotFound)

	env.befriend(t, alice, bob)
	_, err = env.friends.SearchUser(ctx, as(alice, &api.SearchUserRequest{Email: bob.Email}))
	assertCode(t, err, connect.CodeAlreadyExists)
}

func TestAddAndRemoveFriend(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")
	ctx := context.Background()

	added, err := env.friends.AddFriend(ctx, as(alice, &api.AddFriendRequest{UserID: bob.ID}))
	if err != nil {
		t.Fatalf("AddFriend failed: %v", err)
	}
	if added.Msg.Friend.Name != "Bob" {
		t.Errorf("friend: expected 'Bob', got %q", added.Msg.Friend.Name)
	}

	_, err = env.friends.AddFriend(ctx, as(bob, &api.AddFriendRequest{UserID: alice.ID}))
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = env.friends.AddFriend(ctx, as(alice, &api.AddFriendRequest{UserID: alice.ID}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = env.friends.AddFriend(ctx, as(alice, &api.AddFriendRequest{UserID: "no-such-user"}))
	assertCode(t, err, connect.CodeNotFound)

	// Friendship is symmetric.
	list, err := env.friends.ListFriends(ctx, as(bob, &api.ListFriendsRequest{}))
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(list.Msg.Friends) != 1 || list.Msg.Friends[0].User.ID != alice.ID {
		t.Fatalf("bob's friends: expected [alice], got %+v", list.Msg.Friends)
	}

	if _, err := env.friends.RemoveFriend(ctx, as(bob, &api.RemoveFriendRequest{UserID: alice.ID})); err != nil {
		t.Fatalf("RemoveFriend failed: %v", err)
	}
	list, err = env.friends.ListFriends(ctx, as(alice, &api.ListFriendsRequest{}))
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(list.Msg.Friends) != 0 {
		t.Errorf("expected no friends after removal, got %d", len(list.Msg.Friends))
	}

	_, err = env.friends.RemoveFriend(ctx, as(bob, &api.RemoveFriendRequest{UserID: alice.ID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestListFriendsNetAmount(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	bob := env.register(t, "Bob")
	carol := env.register(t, "Carol")
	env.befriend(t, alice, bob)
	env.befriend(t, alice, carol)

	env.createExpense(t, alice, api.ExpenseInput{
		Description:  "Dinner",
		Amount:       9000,
		Participants: participants(bob, carol),
	})

	resp, err := env.friends.ListFriends(context.Background(), as(alice, &api.ListFriendsRequest{}))
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(resp.Msg.Friends) != 2 {
		t.Fatalf("expected 2 friends, got %d", len(resp.Msg.Friends))
	}
	for _, f := range resp.Msg.Friends {
		if f.NetAmount != money.Cents(3000) {
			t.Errorf("%s: expected net 30.00, got %s", f.User.Name, f.NetAmount)
		}
	}
}
