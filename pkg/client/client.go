// Package client talks to the antiforge token-issuing service over HTTP.
// It implements the core.TokenSource port consumed by the lifecycle
// controller.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to inject a
// transport in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// urlBuilder assembles request URLs against the configured base URL.
type urlBuilder struct {
	base  string
	path  string
	query url.Values
}

func (c *Client) url() urlBuilder {
	return urlBuilder{base: c.baseURL, query: url.Values{}}
}

func (b urlBuilder) setPath(path string) urlBuilder {
	b.path = path
	return b
}

func (b urlBuilder) addQueryParam(key string, value any) urlBuilder {
	b.query.Add(key, fmt.Sprintf("%v", value))
	return b
}

func (b urlBuilder) build() string {
	u := b.base + b.path
	if len(b.query) > 0 {
		u += "?" + b.query.Encode()
	}
	return u
}
