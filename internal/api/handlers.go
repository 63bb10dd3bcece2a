package api

import (
	"errors"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hazlamahedich/antiforge/internal/api/presenter"
	"github.com/hazlamahedich/antiforge/internal/buildinfo"
	"github.com/hazlamahedich/antiforge/internal/core"
	"github.com/hazlamahedich/antiforge/internal/store"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleIssue mints a token for a brand new session.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !s.allowIssue(w, r) {
		return
	}

	allowed, err := s.policy.Allow(PolicyEnv{
		RemoteIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("issue policy evaluation failed")
		presenter.Error(w, r, "internal policy error", "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		logger.Warn().Msg("issue denied by policy")
		presenter.Error(w, r, "token issuance denied by policy", presenter.CodePolicyDenied, http.StatusForbidden)
		return
	}

	sessionID := uuid.NewString()
	grant, err := s.mint(r, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("token issuance failed")
		presenter.Error(w, r, "token issuance failed", "", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("session_id", sessionID).Msg("token issued")
	presenter.JSON(w, r, grant, http.StatusOK)
}

// handleRefresh mints a replacement token for an existing session. The
// session's accepted token id rotates, so the previous token stops
// validating.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !s.allowIssue(w, r) {
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		presenter.Error(w, r, "missing session header", presenter.CodeInvalidSession, http.StatusUnauthorized)
		return
	}

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			logger.Warn().Str("session_id", sessionID).Msg("refresh for unknown session")
			presenter.Error(w, r, "unknown or expired session", presenter.CodeInvalidSession, http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Msg("session lookup failed")
		presenter.Error(w, r, "session lookup failed", "", http.StatusInternalServerError)
		return
	}

	grant, err := s.mint(r, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("token refresh failed")
		presenter.Error(w, r, "token refresh failed", "", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("session_id", sessionID).Msg("token refreshed")
	presenter.JSON(w, r, grant, http.StatusOK)
}

// handleClear removes the session. Idempotent: clearing an unknown session
// succeeds with an empty response either way.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	sessionID := r.Header.Get(SessionHeader)
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			logger.Error().Err(err).Msg("session delete failed")
			presenter.Error(w, r, "session delete failed", "", http.StatusInternalServerError)
			return
		}
		logger.Info().Str("session_id", sessionID).Msg("session cleared")
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleValidate reports whether the presented token is still the accepted
// one for its session. A bad token is an answer, not an error.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	valid := false
	if raw := r.Header.Get(TokenHeader); raw != "" {
		sessionID, tokenID, err := s.signer.Verify(raw)
		if err == nil {
			if sess, err := s.sessions.Get(ctx, sessionID); err == nil {
				valid = sess.TokenID == tokenID
			}
		}
	}

	presenter.JSON(w, r, map[string]bool{"valid": valid}, http.StatusOK)
}

// mint signs a fresh token for the session and records the rotated token id.
func (s *Server) mint(r *http.Request, sessionID string) (*core.Grant, error) {
	tokenID := uuid.NewString()

	token, err := s.signer.Sign(sessionID, tokenID, s.maxAge)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := store.Session{
		ID:        sessionID,
		TokenID:   tokenID,
		CreatedAt: now,
		// sessions outlive individual tokens so a late refresh still works
		ExpiresAt: now.Add(2 * s.maxAge),
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		return nil, err
	}

	return &core.Grant{
		Token:     token,
		SessionID: sessionID,
		MaxAge:    int(s.maxAge.Seconds()),
	}, nil
}

// allowIssue applies the fixed-window issue limiter keyed by client IP. It
// writes the rate-limit response itself and reports whether to continue.
func (s *Server) allowIssue(w http.ResponseWriter, r *http.Request) bool {
	if s.rateLimit.Limit <= 0 {
		return true
	}

	count, remaining, err := s.sessions.CountIssue(r.Context(), clientIP(r), s.rateLimit.Window)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("issue limiter unavailable")
		presenter.Error(w, r, "issue limiter unavailable", "", http.StatusInternalServerError)
		return false
	}
	if count > s.rateLimit.Limit {
		retryAfter := int(math.Ceil(remaining.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		presenter.RateLimited(w, r, retryAfter)
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
