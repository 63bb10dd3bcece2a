package core

import "context"

// TokenSource is the port to the token-issuing service.
// Implementations: HTTP client (pkg/client), test fakes.
type TokenSource interface {
	// Issue acquires a brand new token. A new session may be created.
	Issue(ctx context.Context) (*Grant, error)

	// Refresh requests a replacement token for the existing session.
	// The returned grant is expected to carry the same session id.
	Refresh(ctx context.Context, sessionID string) (*Grant, error)

	// Clear invalidates the session on the server side.
	Clear(ctx context.Context, sessionID string) error

	// Validate asks whether the given token is still accepted,
	// without consuming or rotating it.
	Validate(ctx context.Context, token string) (bool, error)
}

// MetadataStore persists the non-secret session bookkeeping across restarts.
type MetadataStore interface {
	Save(meta Metadata) error
	Load() (*Metadata, error)
	Delete() error
}
