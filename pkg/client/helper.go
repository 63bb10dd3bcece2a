package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hazlamahedich/antiforge/internal/api/presenter"
	"github.com/hazlamahedich/antiforge/internal/core"
)

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &core.TransportError{Op: "creating request", Err: err}
	}
	return req, nil
}

// do executes the request and decodes the JSON response into result (if
// non-nil). Responses with status >= 400 are turned into typed errors.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &core.TransportError{Op: "decoding response", Err: err}
		}
	}
	return nil
}

// parseErrorResponse maps the wire error shape onto the error taxonomy. The
// code field is the authoritative signal; the HTTP status is only a fallback
// for unparsable bodies.
func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.TransportError{Op: "reading error response", Err: err}
	}

	var errResp presenter.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		switch errResp.Code {
		case presenter.CodeRateLimited:
			var resetAt time.Time
			if errResp.RetryAfter > 0 {
				resetAt = time.Now().Add(time.Duration(errResp.RetryAfter) * time.Second)
			}
			return &core.RateLimitError{ResetAt: resetAt}
		case presenter.CodeInvalidToken:
			return core.ErrInvalidToken
		case presenter.CodeInvalidSession:
			return core.ErrUnauthorized
		}
		return &core.APIError{
			Code:          errResp.Code,
			Message:       errResp.Error,
			CorrelationID: errResp.CorrelationID,
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return core.ErrUnauthorized
	}
	return &core.APIError{
		Message: "unparsed error response (status " + resp.Status + ")",
	}
}
