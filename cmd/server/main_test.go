package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmynk/settleup/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(config.New())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "settleup.db")

	out, err := run(t, "migrate", "up", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("migrate up output = %q", out)
	}

	out, err = run(t, "migrate", "down", "--db-path", dbPath)
	if err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if !strings.Contains(out, "schema version 0") {
		t.Errorf("migrate down output = %q", out)
	}

	if _, err := run(t, "migrate", "down", "zero", "--db-path", dbPath); err == nil {
		t.Error("expected error for non-numeric steps")
	}
}

func TestServeRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := run(t, "serve", "--db-path", filepath.Join(t.TempDir(), "s.db"))
	if err == nil || !strings.Contains(err.Error(), "JWT secret") {
		t.Fatalf("expected JWT secret validation error, got %v", err)
	}
}

func TestEventsTailWithoutBackend(t *testing.T) {
	t.Setenv("EVENTS_BACKEND", "none")

	if _, err := run(t, "events", "tail"); err == nil {
		t.Fatal("expected error when no events backend is configured")
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard", []string{"*"}, http.MethodPost, "https://x.example", "*", http.StatusTeapot},
		{"listed origin", []string{"https://app.example"}, http.MethodPost, "https://app.example", "https://app.example", http.StatusTeapot},
		{"unlisted origin", []string{"https://app.example"}, http.MethodPost, "https://evil.example", "", http.StatusTeapot},
		{"preflight", []string{"*"}, http.MethodOptions, "https://x.example", "*", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/settleup.v1.AuthService/Login", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			corsMiddleware(tt.allowed, next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
				t.Error("Authorization header not allowed")
			}
		})
	}
}
