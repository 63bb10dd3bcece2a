package client

import (
	"context"
	"net/http"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/core"
)

var _ core.TokenSource = (*Client)(nil)

// Issue acquires a brand new token and session.
func (c *Client) Issue(ctx context.Context) (*core.Grant, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url().
		setPath(api.IssueTokenRoute).
		build())
	if err != nil {
		return nil, err
	}

	var grant core.Grant
	if err := c.do(req, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Refresh requests a replacement token for the given session.
func (c *Client) Refresh(ctx context.Context, sessionID string) (*core.Grant, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.url().
		setPath(api.RefreshTokenRoute).
		build())
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.SessionHeader, sessionID)

	var grant core.Grant
	if err := c.do(req, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Clear invalidates the session server-side. The response carries no body.
func (c *Client) Clear(ctx context.Context, sessionID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.url().
		setPath(api.ClearTokenRoute).
		build())
	if err != nil {
		return err
	}
	req.Header.Set(api.SessionHeader, sessionID)

	return c.do(req, nil)
}

// Validate asks whether the token is still accepted without rotating it.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url().
		setPath(api.ValidateTokenRoute).
		build())
	if err != nil {
		return false, err
	}
	req.Header.Set(api.TokenHeader, token)

	var result struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(req, &result); err != nil {
		return false, err
	}
	return result.Valid, nil
}
