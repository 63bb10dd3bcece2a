package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazlamahedich/antiforge/internal/api/presenter"
	"github.com/hazlamahedich/antiforge/internal/store"
)

func TestRequireCSRF(t *testing.T) {
	signer, err := NewSigner([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}
	sessions := store.NewMemoryStore()

	protected := RequireCSRF(signer, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mutated"))
	}))

	mint := func(t *testing.T, sessionID, tokenID string) string {
		t.Helper()
		token, err := signer.Sign(sessionID, tokenID, time.Hour)
		if err != nil {
			t.Fatalf("Sign error: %v", err)
		}
		return token
	}

	saveSession := func(t *testing.T, sessionID, tokenID string) {
		t.Helper()
		err := sessions.Save(context.Background(), store.Session{
			ID:        sessionID,
			TokenID:   tokenID,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	t.Run("safe methods pass without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d, want 200", rec.Code)
		}
	})

	t.Run("mutating request without token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("POST status = %d, want 403", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), presenter.CodeInvalidToken) {
			t.Fatalf("body %q is missing the invalid-token code", rec.Body.String())
		}
	})

	t.Run("current token passes", func(t *testing.T) {
		saveSession(t, "sess-1", "tid-1")
		req := httptest.NewRequest(http.MethodPost, "/things", nil)
		req.Header.Set(TokenHeader, mint(t, "sess-1", "tid-1"))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("rotated-away token is rejected", func(t *testing.T) {
		saveSession(t, "sess-2", "tid-new")
		req := httptest.NewRequest(http.MethodPost, "/things", nil)
		req.Header.Set(TokenHeader, mint(t, "sess-2", "tid-old"))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("POST status = %d, want 403", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), presenter.CodeInvalidToken) {
			t.Fatalf("body %q is missing the invalid-token code", rec.Body.String())
		}
	})

	t.Run("unknown session is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/things", nil)
		req.Header.Set(TokenHeader, mint(t, "sess-ghost", "tid-x"))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("POST status = %d, want 403", rec.Code)
		}
	})
}

func TestSigner(t *testing.T) {
	signer, err := NewSigner([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		token, err := signer.Sign("sess", "tid", time.Hour)
		if err != nil {
			t.Fatalf("Sign error: %v", err)
		}
		sessionID, tokenID, err := signer.Verify(token)
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if sessionID != "sess" || tokenID != "tid" {
			t.Fatalf("Verify = (%q, %q), want (sess, tid)", sessionID, tokenID)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := signer.Sign("sess", "tid", -time.Minute)
		if err != nil {
			t.Fatalf("Sign error: %v", err)
		}
		if _, _, err := signer.Verify(token); err == nil {
			t.Fatal("Verify accepted an expired token")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewSigner([]byte("ffffffffffffffffffffffffffffffff"))
		if err != nil {
			t.Fatalf("NewSigner error: %v", err)
		}
		token, err := other.Sign("sess", "tid", time.Hour)
		if err != nil {
			t.Fatalf("Sign error: %v", err)
		}
		if _, _, err := signer.Verify(token); err == nil {
			t.Fatal("Verify accepted a token signed with a different key")
		}
	})

	t.Run("short key rejected", func(t *testing.T) {
		if _, err := NewSigner([]byte("short")); err == nil {
			t.Fatal("NewSigner accepted a short key")
		}
	})
}

func TestCompileIssuePolicy(t *testing.T) {
	t.Run("empty expression means allow all", func(t *testing.T) {
		policy, err := CompileIssuePolicy("")
		if err != nil {
			t.Fatalf("CompileIssuePolicy error: %v", err)
		}
		allowed, err := policy.Allow(PolicyEnv{RemoteIP: "203.0.113.5"})
		if err != nil || !allowed {
			t.Fatalf("Allow = (%v, %v), want (true, nil)", allowed, err)
		}
	})

	t.Run("expression gates on env", func(t *testing.T) {
		policy, err := CompileIssuePolicy(`remote_ip startsWith "10." && user_agent contains "internal"`)
		if err != nil {
			t.Fatalf("CompileIssuePolicy error: %v", err)
		}

		allowed, err := policy.Allow(PolicyEnv{RemoteIP: "10.1.2.3", UserAgent: "internal-client/1.0"})
		if err != nil || !allowed {
			t.Fatalf("Allow = (%v, %v), want (true, nil)", allowed, err)
		}

		allowed, err = policy.Allow(PolicyEnv{RemoteIP: "203.0.113.5", UserAgent: "internal-client/1.0"})
		if err != nil || allowed {
			t.Fatalf("Allow = (%v, %v), want (false, nil)", allowed, err)
		}
	})

	t.Run("non-boolean expression fails to compile", func(t *testing.T) {
		if _, err := CompileIssuePolicy(`remote_ip + user_agent`); err == nil {
			t.Fatal("CompileIssuePolicy accepted a non-boolean expression")
		}
	})
}
