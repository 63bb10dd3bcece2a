package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hazlamahedich/antiforge/internal/api/presenter"
	"github.com/hazlamahedich/antiforge/internal/store"
)

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// RequireCSRF protects the mutating routes of a resource server. Safe
// methods pass through; everything else must carry the currently accepted
// token for its session, otherwise the request is rejected with the
// distinguishable invalid-token code the client pipeline recovers from.
func RequireCSRF(signer *Signer, sessions store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get(TokenHeader)
			if raw == "" {
				presenter.Error(w, r, "missing csrf token", presenter.CodeInvalidToken, http.StatusForbidden)
				return
			}

			sessionID, tokenID, err := signer.Verify(raw)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("csrf token verification failed")
				presenter.Error(w, r, "invalid csrf token", presenter.CodeInvalidToken, http.StatusForbidden)
				return
			}

			sess, err := sessions.Get(r.Context(), sessionID)
			if err != nil || sess.TokenID != tokenID {
				// the session rotated or expired since the client fetched
				// its token
				presenter.Error(w, r, "invalid csrf token", presenter.CodeInvalidToken, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
