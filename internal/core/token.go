package core

import "time"

// Grant is the result of a successful Issue or Refresh call against the
// token-issuing service.
type Grant struct {
	// Token is the actual secret anti-forgery token.
	// It must never be logged or persisted to long-lived storage.
	Token string `json:"token"`

	// SessionID identifies the server-side session the token is bound to.
	// It is stable across refreshes of the same session.
	SessionID string `json:"session_id"`

	// MaxAge is the token lifetime in seconds, as reported by the server.
	MaxAge int `json:"max_age"`
}

// Token is the live anti-forgery credential held by the lifecycle controller.
// If Value is non-empty, ExpiresAt was in the future at assignment time.
type Token struct {
	Value     string
	SessionID string
	ExpiresAt time.Time
}

// Metadata is the non-secret part of the controller state that may cross a
// persistence boundary. The token value itself is deliberately absent.
type Metadata struct {
	SessionID string    `json:"session_id"`
	LastFetch time.Time `json:"last_fetch"`
}
