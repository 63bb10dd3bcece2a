package presenter

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hazlamahedich/antiforge/internal/api/middleware"
)

// Machine-readable error codes. The client maps these onto its error
// taxonomy; everything else is treated as a generic API error.
const (
	CodeRateLimited    = "rate_limited"
	CodeInvalidToken   = "invalid_csrf_token"
	CodeInvalidSession = "invalid_session"
	CodePolicyDenied   = "policy_denied"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlation_id"`

	// RetryAfter is the cool-down in seconds, only set with CodeRateLimited.
	RetryAfter int `json:"retry_after,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg, code string, status int) {
	resp := ErrorResponse{
		Error:         msg,
		Code:          code,
		CorrelationID: middleware.CorrelationCtx(r.Context()),
	}
	JSON(w, r, resp, status)
}

func RateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	resp := ErrorResponse{
		Error:         "too many token requests",
		Code:          CodeRateLimited,
		CorrelationID: middleware.CorrelationCtx(r.Context()),
		RetryAfter:    retryAfter,
	}
	JSON(w, r, resp, http.StatusTooManyRequests)
}
