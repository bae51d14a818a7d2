package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/pkg/api"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:    "Alice@Example.com",
		Name:     "  Alice ",
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.Msg.Token == "" {
		t.Error("expected a token")
	}
	if resp.Msg.User.Email != "alice@example.com" {
		t.Errorf("email: expected lowercased address, got %q", resp.Msg.User.Email)
	}
	if resp.Msg.User.Name != "Alice" {
		t.Errorf("name: expected 'Alice', got %q", resp.Msg.User.Name)
	}

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "ALICE@example.com",
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != resp.Msg.User.ID {
		t.Errorf("login returned user %s, want %s", login.Msg.User.ID, resp.Msg.User.ID)
	}
}

func TestRegisterErrors(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "Alice")

	tests := []struct {
		name string
		req  *api.RegisterRequest
		code connect.Code
	}{
		{"duplicate email differs in case", &api.RegisterRequest{Email: "ALICE@example.com", Name: "Other", Password: testPassword}, connect.CodeAlreadyExists},
		{"weak password", &api.RegisterRequest{Email: "bob@example.com", Name: "Bob", Password: "short"}, connect.CodeInvalidArgument},
		{"invalid email", &api.RegisterRequest{Email: "not-an-email", Name: "Bob", Password: testPassword}, connect.CodeInvalidArgument},
		{"blank name", &api.RegisterRequest{Email: "bob@example.com", Name: "   ", Password: testPassword}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(context.Background(), connect.NewRequest(tt.req))
			assertCode(t, err, tt.code)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "Alice")

	_, err := env.auth.Login(context.Background(), connect.NewRequest(&api.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}))
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = env.auth.Login(context.Background(), connect.NewRequest(&api.LoginRequest{
		Email:    "nobody@example.com",
		Password: testPassword,
	}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestGetCurrentUser(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")

	resp, err := env.auth.GetCurrentUser(context.Background(), as(alice, &api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if resp.Msg.User.ID != alice.ID || resp.Msg.User.Name != "Alice" {
		t.Errorf("unexpected user: %+v", resp.Msg.User)
	}
	if resp.Msg.User.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}

	_, err = env.auth.GetCurrentUser(context.Background(), connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	forged := testUser{Token: "not.a.token"}
	_, err = env.auth.GetCurrentUser(context.Background(), as(forged, &api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "Alice")
	env.register(t, "Bob")
	ctx := context.Background()

	resp, err := env.auth.UpdateProfile(ctx, as(alice, &api.UpdateProfileRequest{
		Name:  "Alice Smith",
		Email: "Alice.Smith@example.com",
	}))
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if resp.Msg.User.Name != "Alice Smith" || resp.Msg.User.Email != "alice.smith@example.com" {
		t.Errorf("unexpected profile: %+v", resp.Msg.User)
	}

	_, err = env.auth.UpdateProfile(ctx, as(alice, &api.UpdateProfileRequest{
		Name:  "Alice",
		Email: "BOB@example.com",
	}))
	assertCode(t, err, connect.CodeAlreadyExists)

	// Keeping the same address is not a conflict.
	if _, err := env.auth.UpdateProfile(ctx, as(alice, &api.UpdateProfileRequest{
		Name:  "Alice S.",
		Email: "alice.smith@example.com",
	})); err != nil {
		t.Fatalf("UpdateProfile with unchanged email failed: %v", err)
	}

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "alice.smith@example.com",
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Login with new email failed: %v", err)
	}
	if login.Msg.User.Name != "Alice S." {
		t.Errorf("name: expected 'Alice S.', got %q", login.Msg.User.Name)
	}
}
