package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/models"
)

type ping struct{ Text string }

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func newServer(t *testing.T, procedure string, h func(ctx context.Context) error, opts ...connect.HandlerOption) *httptest.Server {
	t.Helper()
	opts = append(opts, connect.WithCodec(jsonCodec{}))
	handler := connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[ping]) (*connect.Response[ping], error) {
			if err := h(ctx); err != nil {
				return nil, err
			}
			return connect.NewResponse(&ping{}), nil
		},
		opts...,
	)
	mux := http.NewServeMux()
	mux.Handle(procedure, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(srv *httptest.Server, procedure, token string) error {
	client := connect.NewClient[ping, ping](srv.Client(), srv.URL+procedure, connect.WithCodec(jsonCodec{}))
	req := connect.NewRequest(&ping{})
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	_, err := client.CallUnary(context.Background(), req)
	return err
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "user-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var seen string
	const procedure = "/test.v1.Test/Ping"
	srv := newServer(t, procedure, func(ctx context.Context) error {
		seen = GetUserID(ctx)
		return nil
	}, connect.WithInterceptors(RequireAuth(jwtManager)))

	if err := call(srv, procedure, token); err != nil {
		t.Fatalf("authenticated call failed: %v", err)
	}
	if seen != "user-1" {
		t.Errorf("user ID in context = %q, want user-1", seen)
	}

	if err := call(srv, procedure, ""); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("missing token code = %v, want Unauthenticated", connect.CodeOf(err))
	}
	if err := call(srv, procedure, "garbage"); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("bad token code = %v, want Unauthenticated", connect.CodeOf(err))
	}
}

func TestRequireAuth_Public(t *testing.T) {
	const procedure = "/test.v1.Test/Login"
	srv := newServer(t, procedure, func(ctx context.Context) error {
		if _, err := RequireUserID(ctx); err == nil {
			t.Error("public procedure should not carry a user")
		}
		return nil
	}, connect.WithInterceptors(RequireAuth(auth.NewJWTManager("secret", time.Hour), procedure)))

	if err := call(srv, procedure, ""); err != nil {
		t.Errorf("public call failed: %v", err)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	const procedure = "/test.v1.Test/Fail"
	srv := newServer(t, procedure, func(ctx context.Context) error {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("bad input"))
	}, connect.WithInterceptors(LoggingInterceptor(logger)))

	_ = call(srv, procedure, "")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, procedure) || !strings.Contains(out, "bad input") {
		t.Errorf("unexpected log output: %s", out)
	}
}
