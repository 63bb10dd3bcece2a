// Package pipeline decorates an HTTP transport so that every state-changing
// request carries a valid CSRF token, with a single-shot recovery when the
// server rejects the token the client was holding.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hazlamahedich/antiforge/internal/api"
	"github.com/hazlamahedich/antiforge/internal/api/presenter"
)

// maxErrorBody bounds how much of a 403 body is inspected for the
// invalid-token code.
const maxErrorBody = 64 << 10

// TokenProvider is the slice of the lifecycle controller the pipeline needs.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Fetch(ctx context.Context) (string, error)
	Invalidate()
}

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Transport is an http.RoundTripper that attaches the CSRF token header to
// mutating requests. When the server answers with the distinguishable
// invalid-token code, it invalidates the cached token, fetches a fresh one
// and replays the request exactly once; the outcome of the replay is
// returned unmodified. Callers never see the token header or the retry.
type Transport struct {
	base   http.RoundTripper
	tokens TokenProvider
	header string
	logger zerolog.Logger
}

type Option func(*Transport)

// WithBase sets the underlying transport. Defaults to
// http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithHeader overrides the request header carrying the token.
func WithHeader(name string) Option {
	return func(t *Transport) { t.header = name }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

func NewTransport(tokens TokenProvider, opts ...Option) *Transport {
	t := &Transport{
		base:   http.DefaultTransport,
		tokens: tokens,
		header: api.TokenHeader,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewHTTPClient wraps the pipeline into a ready-to-use *http.Client, the
// contract consumed by business code: send the request, receive the final
// response or the final error.
func NewHTTPClient(tokens TokenProvider, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(tokens, opts...)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if safeMethods[req.Method] {
		return t.base.RoundTrip(req)
	}

	// buffer a non-replayable body up front, otherwise the one retry we are
	// allowed would be impossible
	req, err := replayable(req)
	if err != nil {
		return nil, err
	}

	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err := t.send(req, token, true /* first attempt */)
	if err != nil {
		return nil, err
	}

	rejected, resp, err := invalidTokenResponse(resp)
	if err != nil {
		return nil, err
	}
	if !rejected {
		return resp, nil
	}

	// the server already rejected the token, so a remote clear would be
	// redundant: drop it locally and acquire a replacement
	_ = resp.Body.Close()
	t.tokens.Invalidate()

	fresh, err := t.tokens.Fetch(req.Context())
	if err != nil {
		return nil, fmt.Errorf("replacing rejected csrf token: %w", err)
	}

	t.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("retrying request with fresh csrf token")

	// exactly one replay; whatever comes back is the caller's problem
	return t.send(req, fresh, false)
}

// send issues one attempt with the given token attached. The original
// request is never mutated.
func (t *Transport) send(req *http.Request, token string, first bool) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	attempt.Header.Set(t.header, token)

	if !first && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replaying request body: %w", err)
		}
		attempt.Body = body
	}

	return t.base.RoundTrip(attempt)
}

// replayable returns a request whose body can be read more than once.
func replayable(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return req, nil
	}

	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffering request body: %w", err)
	}

	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(buf))
	clone.ContentLength = int64(len(buf))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	return clone, nil
}

// invalidTokenResponse reports whether the response carries the specific
// invalid-token rejection. Any other response, 403s included, is handed back
// with a re-readable body.
func invalidTokenResponse(resp *http.Response) (bool, *http.Response, error) {
	if resp.StatusCode != http.StatusForbidden {
		return false, resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	if err != nil {
		return false, nil, fmt.Errorf("reading rejection body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var errResp presenter.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Code == presenter.CodeInvalidToken {
		return true, resp, nil
	}
	return false, resp, nil
}
