package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/lifecycle"
	"github.com/hazlamahedich/antiforge/internal/store"
	"github.com/hazlamahedich/antiforge/pkg/client"
)

// full loop: token server, protected resource, lifecycle controller and the
// retrying transport, with no fakes in between
func TestEndToEnd_RecoversFromServerSideRotation(t *testing.T) {
	sessions := store.NewMemoryStore()
	signer, err := api.NewSigner([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	srv := api.NewServer(sessions, signer, nil, time.Hour, api.RateLimit{})
	tokenSrv := httptest.NewServer(srv.Routes())
	defer tokenSrv.Close()

	// a resource server sharing the session store, with mutating routes
	// protected the same way a real deployment would protect them
	var handled int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusCreated)
	})
	resourceSrv := httptest.NewServer(api.RequireCSRF(signer, sessions)(mux))
	defer resourceSrv.Close()

	cli := client.New(tokenSrv.URL)
	ctrl := lifecycle.New(cli)
	defer ctrl.Close()

	hc := NewHTTPClient(ctrl)

	post := func() *http.Response {
		t.Helper()
		resp, err := hc.Post(resourceSrv.URL+"/orders", "application/json", strings.NewReader(`{"qty":1}`))
		if err != nil {
			t.Fatalf("Post error: %v", err)
		}
		_ = resp.Body.Close()
		return resp
	}

	// first request acquires a token on demand
	if resp := post(); resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if handled != 1 {
		t.Fatalf("handled = %d, want 1", handled)
	}

	// rotate the token server-side behind the controller's back; the cached
	// token is now stale and the next mutating request gets rejected once
	if _, err := cli.Refresh(context.Background(), ctrl.SessionID()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if resp := post(); resp.StatusCode != http.StatusCreated {
		t.Fatalf("status after rotation = %d, want 201", resp.StatusCode)
	}
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}

	// the recovery replaced the rejected token with a usable one
	if !ctrl.Valid() {
		t.Fatal("controller holds no valid token after recovery")
	}
}
