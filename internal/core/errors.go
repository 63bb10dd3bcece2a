package core

import (
	"fmt"
	"time"
)

var (
	// ErrUnauthorized indicates the server rejected the request outright,
	// e.g. because the session is unknown.
	ErrUnauthorized = fmt.Errorf("unauthorized")

	// ErrInvalidToken is the distinguishable signal that the presented CSRF
	// token was rejected. It is the only error category the request pipeline
	// recovers from (exactly once).
	ErrInvalidToken = fmt.Errorf("invalid csrf token")

	// ErrTokenUnavailable is synthesized by the controller when no valid
	// token could be obtained for a caller.
	ErrTokenUnavailable = fmt.Errorf("no valid csrf token available")
)

// RateLimitError indicates the server refused to issue or refresh a token.
// ResetAt is the instant the cool-down elapses; it may be zero if the server
// did not report one.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "token issuance rate limited"
	}
	return fmt.Sprintf("token issuance rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// TransportError wraps a network-level failure talking to the issuing
// service. It is never retried by the controller itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a generic error response from the issuing service that does not
// map to a more specific category.
type APIError struct {
	Code          string
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: '%s' (code: %s, correlation: %s)", e.Message, e.Code, e.CorrelationID)
}
