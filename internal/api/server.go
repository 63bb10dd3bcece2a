package api

import (
	"time"

	"github.com/hazlamahedich/antiforge/internal/store"
)

// RateLimit is the fixed-window issue limiter configuration. Limit <= 0
// disables limiting.
type RateLimit struct {
	Limit  int64
	Window time.Duration
}

type Server struct {
	sessions  store.SessionStore
	signer    *Signer
	policy    *IssuePolicy
	maxAge    time.Duration
	rateLimit RateLimit
}

func NewServer(
	sessions store.SessionStore,
	signer *Signer,
	policy *IssuePolicy,
	maxAge time.Duration,
	rateLimit RateLimit,
) *Server {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Server{
		sessions:  sessions,
		signer:    signer,
		policy:    policy,
		maxAge:    maxAge,
		rateLimit: rateLimit,
	}
}
