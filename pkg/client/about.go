package client

import (
	"context"
	"net/http"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/buildinfo"
)

// About fetches the server's build information.
func (c *Client) About(ctx context.Context) (*buildinfo.Info, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url().
		setPath(api.AboutRoute).
		build())
	if err != nil {
		return nil, err
	}

	var info buildinfo.Info
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
