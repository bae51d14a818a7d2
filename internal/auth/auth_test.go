package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

type memUsers struct {
	byEmail map[string]*models.User
}

func (m *memUsers) CreateUser(_ context.Context, user *models.User) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return storage.ErrConflict
	}
	m.byEmail[user.Email] = user
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[models.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memUsers{byEmail: map[string]*models.User{}}).WithCost(bcrypt.MinCost)

	user, err := a.Register(ctx, "Alice@Example.com", " Alice ", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" || user.Name != "Alice" {
		t.Errorf("got %q <%q>", user.Name, user.Email)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password must be hashed")
	}

	if _, err := a.Register(ctx, "ALICE@example.com", "Alice 2", "correct horse"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate Register error = %v, want ErrEmailExists", err)
	}
	if _, err := a.Register(ctx, "bob@example.com", "Bob", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak password error = %v, want ErrWeakPassword", err)
	}

	got, err := a.Authenticate(ctx, "alice@EXAMPLE.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated %s, want %s", got.ID, user.ID)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: "user-1", Email: "a@example.com"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Issuer != Issuer {
		t.Errorf("claims = %+v", claims)
	}

	other := NewJWTManager("other-secret", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret error = %v, want ErrInvalidToken", err)
	}

	expired := NewJWTManager("test-secret", -time.Minute)
	stale, _ := expired.Generate(user)
	if _, err := m.Validate(stale); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc.def", want: "abc.def"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: ErrMissingToken},
		{header: "Basic abc", wantErr: ErrInvalidToken},
		{header: "Bearer", wantErr: ErrInvalidToken},
		{header: "Bearer   ", wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		got, err := ParseBearer(tt.header)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseBearer(%q) error = %v, want %v", tt.header, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
