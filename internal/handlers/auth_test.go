package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := issueToken(42, secret, time.Hour)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	subject, err := parseTokenSubject(token, secret)
	if err != nil {
		t.Fatalf("parseTokenSubject: %v", err)
	}
	if subject != "42" {
		t.Fatalf("subject = %q, want %q", subject, "42")
	}
}

func TestParseTokenSubjectRejectsWrongSecret(t *testing.T) {
	token, err := issueToken(42, []byte("right"), time.Hour)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := parseTokenSubject(token, []byte("wrong")); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenSubjectRejectsExpired(t *testing.T) {
	token, err := issueToken(42, []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := parseTokenSubject(token, []byte("secret")); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	middleware := RequireAuth(secret)

	protected := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := participantIDFromContext(r.Context())
		if err != nil {
			t.Errorf("participantIDFromContext: %v", err)
		}
		if id != 42 {
			t.Errorf("participant id = %d, want 42", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		token, err := issueToken(42, []byte(secret), time.Hour)
		if err != nil {
			t.Fatalf("issueToken: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}
