package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/core"
)

func TestIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != api.IssueTokenRoute {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-1","session_id":"sess-1","max_age":3600}`))
	}))
	defer srv.Close()

	grant, err := New(srv.URL).Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if grant.Token != "tok-1" || grant.SessionID != "sess-1" || grant.MaxAge != 3600 {
		t.Fatalf("Issue = %+v", grant)
	}
}

func TestRefresh_SendsSessionHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(api.SessionHeader); got != "sess-1" {
			t.Errorf("session header = %q, want sess-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-2","session_id":"sess-1","max_age":3600}`))
	}))
	defer srv.Close()

	grant, err := New(srv.URL).Refresh(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if grant.Token != "tok-2" {
		t.Fatalf("Token = %q, want tok-2", grant.Token)
	}
}

func TestClear(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get(api.SessionHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL).Clear(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if gotSession != "sess-1" {
		t.Fatalf("session header = %q, want sess-1", gotSession)
	}
}

func TestValidate_SendsTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(api.TokenHeader); got != "tok-1" {
			t.Errorf("token header = %q, want tok-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":false}`))
	}))
	defer srv.Close()

	valid, err := New(srv.URL).Validate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if valid {
		t.Fatal("Validate = true, want false")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited with retry_after",
			status: http.StatusTooManyRequests,
			body:   `{"error":"rate limit exceeded","code":"rate_limited","retry_after":42}`,
			check: func(t *testing.T, err error) {
				var rle *core.RateLimitError
				if !errors.As(err, &rle) {
					t.Fatalf("error = %v, want RateLimitError", err)
				}
				until := time.Until(rle.ResetAt)
				if until < 40*time.Second || until > 42*time.Second {
					t.Fatalf("ResetAt in %v, want ~42s", until)
				}
			},
		},
		{
			name:   "rate limited without retry_after",
			status: http.StatusTooManyRequests,
			body:   `{"error":"rate limit exceeded","code":"rate_limited"}`,
			check: func(t *testing.T, err error) {
				var rle *core.RateLimitError
				if !errors.As(err, &rle) {
					t.Fatalf("error = %v, want RateLimitError", err)
				}
				if !rle.ResetAt.IsZero() {
					t.Fatalf("ResetAt = %v, want zero", rle.ResetAt)
				}
			},
		},
		{
			name:   "invalid token",
			status: http.StatusForbidden,
			body:   `{"error":"token rejected","code":"invalid_csrf_token"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, core.ErrInvalidToken) {
					t.Fatalf("error = %v, want ErrInvalidToken", err)
				}
			},
		},
		{
			name:   "invalid session",
			status: http.StatusUnauthorized,
			body:   `{"error":"unknown session","code":"invalid_session"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, core.ErrUnauthorized) {
					t.Fatalf("error = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:   "other api error keeps code and correlation id",
			status: http.StatusForbidden,
			body:   `{"error":"denied by policy","code":"policy_denied","correlation_id":"abc123"}`,
			check: func(t *testing.T, err error) {
				var apiErr *core.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want APIError", err)
				}
				if apiErr.Code != "policy_denied" || apiErr.CorrelationID != "abc123" {
					t.Fatalf("APIError = %+v", apiErr)
				}
			},
		},
		{
			name:   "unparsable 401 body",
			status: http.StatusUnauthorized,
			body:   `<html>nope</html>`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, core.ErrUnauthorized) {
					t.Fatalf("error = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:   "unparsable 500 body",
			status: http.StatusInternalServerError,
			body:   `boom`,
			check: func(t *testing.T, err error) {
				var apiErr *core.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want APIError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Issue(context.Background())
			if err == nil {
				t.Fatal("Issue succeeded, want error")
			}
			tt.check(t, err)
		})
	}
}

func TestConnectionFailure(t *testing.T) {
	// a server that is already gone
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL).Issue(context.Background())

	var te *core.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TransportError", err)
	}
}

func TestURLBuilder(t *testing.T) {
	c := New("http://example.test")

	got := c.url().setPath("/csrf/token").build()
	if got != "http://example.test/csrf/token" {
		t.Fatalf("build() = %q", got)
	}

	got = c.url().setPath("/csrf/token").addQueryParam("limit", 5).build()
	if got != "http://example.test/csrf/token?limit=5" {
		t.Fatalf("build() = %q", got)
	}
}
