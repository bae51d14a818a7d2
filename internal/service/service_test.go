package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/events"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/pkg/api"
)

const testPassword = "password123"

// recordingPublisher keeps every event it is given.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = string(e.Type)
	}
	return out
}

type testEnv struct {
	url       string
	client    *http.Client
	store     *sqlite.SQLiteStore
	publisher *recordingPublisher
	auth      *api.AuthServiceClient
	friends   *api.FriendServiceClient
	groups    *api.GroupServiceClient
	expenses  *api.ExpenseServiceClient
}

type testUser struct {
	ID    string
	Name  string
	Email string
	Token string
}

// setupTestServer wires every service behind the auth interceptor, the way
// the server binary does, against a temporary database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager("test-secret-key-0123456789", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	publisher := &recordingPublisher{}
	m := metrics.New()

	interceptors := connect.WithInterceptors(
		m.Interceptor(),
		middleware.RequireAuth(jwtManager, api.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, logger), interceptors))
	mux.Handle(api.NewFriendServiceHandler(NewFriendService(store, logger), interceptors))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(store, logger), interceptors))
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(store, publisher, m, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		url:       server.URL,
		client:    server.Client(),
		store:     store,
		publisher: publisher,
		auth:      api.NewAuthServiceClient(server.Client(), server.URL),
		friends:   api.NewFriendServiceClient(server.Client(), server.URL),
		groups:    api.NewGroupServiceClient(server.Client(), server.URL),
		expenses:  api.NewExpenseServiceClient(server.Client(), server.URL),
	}
}

// register creates an account named name with email name@example.com.
func (e *testEnv) register(t *testing.T, name string) testUser {
	t.Helper()

	email := strings.ToLower(name) + "@example.com"
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Name:     name,
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", name, err)
	}
	return testUser{ID: resp.Msg.User.ID, Name: name, Email: email, Token: resp.Msg.Token}
}

// befriend makes a and b friends.
func (e *testEnv) befriend(t *testing.T, a, b testUser) {
	t.Helper()
	if _, err := e.friends.AddFriend(context.Background(), as(a, &api.AddFriendRequest{UserID: b.ID})); err != nil {
		t.Fatalf("AddFriend failed: %v", err)
	}
}

// createExpense stores in as u and returns the stored expense.
func (e *testEnv) createExpense(t *testing.T, u testUser, in api.ExpenseInput) api.Expense {
	t.Helper()
	resp, err := e.expenses.CreateExpense(context.Background(), as(u, &api.CreateExpenseRequest{Expense: in}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return resp.Msg.Expense
}

// postJSON sends a raw Connect unary JSON request as u.
func (e *testEnv) postJSON(t *testing.T, u testUser, procedure, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.url+procedure, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.Token)

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s request failed: %v", procedure, err)
	}
	return resp
}

// as builds a request authenticated as u.
func as[T any](u testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.Token)
	return req
}

func participants(users ...testUser) []api.Participant {
	out := make([]api.Participant, len(users))
	for i, u := range users {
		out[i] = api.Participant{UserID: u.ID}
	}
	return out
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("code: expected %v, got %v (%v)", want, got, err)
	}
}

func splitErrorKind(t *testing.T, err error) string {
	t.Helper()
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	return cerr.Meta().Get(SplitErrorKindKey)
}
