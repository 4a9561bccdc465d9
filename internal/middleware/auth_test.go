package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/pkg/jwt"
)

type fakeRevocations struct {
	revoked map[string]bool
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func TestAuth(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Hour)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == uuid.Nil {
			t.Error("expected user id in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		Auth(svc, nil)(okHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("rejects malformed header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		Auth(svc, nil)(okHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("accepts a valid token", func(t *testing.T) {
		token, err := svc.GenerateToken(uuid.New(), "cliente@preventia.app", "client")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		Auth(svc, nil)(okHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		token, err := svc.GenerateToken(uuid.New(), "cliente@preventia.app", "client")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		claims, err := svc.ValidateToken(token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		checker := &fakeRevocations{revoked: map[string]bool{claims.ID: true}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		Auth(svc, checker)(okHandler).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	run := func(role string) int {
		token, err := svc.GenerateToken(uuid.New(), "a@b.co", role)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		Auth(svc, nil)(RequireAdmin()(next)).ServeHTTP(rec, req)
		return rec.Code
	}

	if code := run("client"); code != http.StatusForbidden {
		t.Errorf("client role: status = %d, want 403", code)
	}
	if code := run("admin"); code != http.StatusOK {
		t.Errorf("admin role: status = %d, want 200", code)
	}
}
