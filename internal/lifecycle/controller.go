// Package lifecycle owns the client-side CSRF token state: acquisition,
// caching, proactive refresh, rate-limit tracking and clearing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hazlamahedich/antiforge/internal/core"
)

const (
	// refreshLead is how long before nominal expiry the scheduled refresh
	// fires. Token use and refresh are not atomic, so a request could read a
	// token that expires server-side just before the request arrives; the
	// lead keeps a safety margin.
	refreshLead = 5 * time.Minute

	// DefaultCooldown is the fetch cool-down applied after a rate-limited
	// failure when the server did not report a reset instant.
	DefaultCooldown = time.Minute
)

const (
	fetchKey   = "fetch"
	refreshKey = "refresh"
)

// refreshTimer is the controller's handle on a scheduled refresh. Satisfied
// by *time.Timer; tests substitute a recording fake through newTimer.
type refreshTimer interface {
	Stop() bool
}

// Controller manages the lifecycle of a single CSRF token. It is safe for
// concurrent use; overlapping fetches and refreshes are each coalesced into
// one upstream call.
type Controller struct {
	source   core.TokenSource
	meta     core.MetadataStore
	logger   zerolog.Logger
	now      func() time.Time
	newTimer func(time.Duration, func()) refreshTimer
	cooldown time.Duration

	flight singleflight.Group

	mu           sync.Mutex
	token        core.Token
	limitedUntil time.Time
	limitErr     error
	timer        refreshTimer
	closed       bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for background refresh and clear failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMetadataStore persists non-secret session bookkeeping (session id,
// last fetch time) across restarts. The token value never reaches the store.
func WithMetadataStore(store core.MetadataStore) Option {
	return func(c *Controller) { c.meta = store }
}

// WithCooldown overrides the fallback rate-limit cool-down.
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) { c.cooldown = d }
}

// New creates a Controller backed by the given token source. If a metadata
// store is configured, the previously persisted session id is restored so the
// session survives restarts; the token itself is always re-fetched.
func New(source core.TokenSource, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		logger: zerolog.Nop(),
		now:    time.Now,
		newTimer: func(d time.Duration, fn func()) refreshTimer {
			return time.AfterFunc(d, fn)
		},
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.meta != nil {
		if meta, err := c.meta.Load(); err == nil && meta != nil {
			c.token.SessionID = meta.SessionID
		}
	}

	return c
}

// Token returns the cached token if it is still valid, otherwise it fetches a
// new one (joining an in-flight fetch if any). A failed acquisition is
// reported as ErrTokenUnavailable with the cause attached.
func (c *Controller) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.validLocked() {
		value := c.token.Value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, err := c.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTokenUnavailable, err)
	}
	return value, nil
}

// Fetch always performs a fresh acquisition, regardless of cache validity.
// Concurrent callers attach to the same in-flight operation instead of
// issuing parallel requests. While a rate-limit window is active, no network
// call is made and the recorded rate-limit error is returned.
func (c *Controller) Fetch(ctx context.Context) (string, error) {
	if err := c.gate(); err != nil {
		return "", err
	}

	value, err, _ := c.flight.Do(fetchKey, func() (any, error) {
		grant, err := c.source.Issue(ctx)
		if err != nil {
			c.recordFailure(err)
			return nil, err
		}
		c.store(grant)
		return grant.Token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Refresh requests a replacement token for the existing session. It does not
// fall back to Fetch on failure; the error is reported as-is and the cached
// token is left to age out, so the next Token call that observes staleness
// re-fetches.
func (c *Controller) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	sessionID := c.token.SessionID
	c.mu.Unlock()

	if sessionID == "" {
		return "", fmt.Errorf("%w: no session to refresh", core.ErrTokenUnavailable)
	}
	if err := c.gate(); err != nil {
		return "", err
	}

	value, err, _ := c.flight.Do(refreshKey, func() (any, error) {
		grant, err := c.source.Refresh(ctx, sessionID)
		if err != nil {
			c.recordFailure(err)
			return nil, err
		}
		if grant.SessionID != sessionID {
			// refresh is expected to preserve the session, but the server
			// response wins over our expectation
			c.logger.Warn().
				Str("session_id", grant.SessionID).
				Msg("refresh returned a different session id")
		}
		c.store(grant)
		return grant.Token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Validate asks the issuing service whether the cached token is still
// accepted, without consuming it. It is advisory: no cached token and any
// transport failure both yield false rather than an error.
func (c *Controller) Validate(ctx context.Context) bool {
	c.mu.Lock()
	value := c.token.Value
	c.mu.Unlock()

	if value == "" {
		return false
	}
	ok, err := c.source.Validate(ctx, value)
	if err != nil {
		c.logger.Debug().Err(err).Msg("token validation failed, treating token as invalid")
		return false
	}
	return ok
}

// Clear resets the local state (token, session, expiry, timer) and then
// attempts a best-effort remote invalidation. The local reset happens before
// the network call and is guaranteed even if that call fails, so the client
// never keeps acting on a credential it believes is revoked.
func (c *Controller) Clear(ctx context.Context) {
	c.mu.Lock()
	sessionID := c.token.SessionID
	c.token = core.Token{}
	c.limitedUntil = time.Time{}
	c.limitErr = nil
	c.stopTimerLocked()
	c.mu.Unlock()

	if c.meta != nil {
		if err := c.meta.Delete(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to delete persisted session metadata")
		}
	}

	if sessionID == "" {
		return
	}
	if err := c.source.Clear(ctx, sessionID); err != nil {
		c.logger.Warn().Err(err).Msg("remote token clear failed, local state already reset")
	}
}

// Invalidate drops the locally cached token without contacting the server.
// The request pipeline uses it after the server has already rejected the
// token, where a remote clear would be redundant.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token.Value = ""
	c.token.ExpiresAt = time.Time{}
	c.stopTimerLocked()
}

// Close cancels the scheduled refresh timer. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.stopTimerLocked()
}

// Valid reports whether a cached token exists and has not passed its
// client-side expiry.
func (c *Controller) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

// Remaining returns the time left until the cached token expires, or zero if
// there is none.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked() {
		return 0
	}
	return c.token.ExpiresAt.Sub(c.now())
}

// RateLimited reports whether a rate-limit window is currently active.
func (c *Controller) RateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.limitedUntil)
}

// SessionID returns the current session id, which may be set even when no
// token is cached (e.g. restored from the metadata store).
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.SessionID
}

func (c *Controller) validLocked() bool {
	return c.token.Value != "" && c.now().Before(c.token.ExpiresAt)
}

// gate refuses new acquisition attempts while a rate-limit window is active,
// returning the last recorded rate-limit error.
func (c *Controller) gate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Before(c.limitedUntil) {
		return c.limitErr
	}
	return nil
}

// store installs a freshly issued grant: computes the client-side expiry,
// clears any rate-limit window, schedules the proactive refresh and persists
// the non-secret metadata.
func (c *Controller) store(grant *core.Grant) {
	lifetime := time.Duration(grant.MaxAge) * time.Second

	// expire client-side before the server does: buffer = min(5m, maxAge/2)
	buffer := lifetime / 2
	if buffer > refreshLead {
		buffer = refreshLead
	}

	now := c.now()

	c.mu.Lock()
	c.token = core.Token{
		Value:     grant.Token,
		SessionID: grant.SessionID,
		ExpiresAt: now.Add(lifetime - buffer),
	}
	c.limitedUntil = time.Time{}
	c.limitErr = nil
	c.scheduleRefreshLocked(lifetime)
	c.mu.Unlock()

	if c.meta != nil {
		meta := core.Metadata{SessionID: grant.SessionID, LastFetch: now}
		if err := c.meta.Save(meta); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist session metadata")
		}
	}
}

// recordFailure opens a rate-limit window when the failure carries the
// rate-limit signal. Other failures are surfaced to the caller untouched and
// leave the window alone.
func (c *Controller) recordFailure(err error) {
	var rle *core.RateLimitError
	if !errors.As(err, &rle) {
		return
	}

	resetAt := rle.ResetAt
	if resetAt.IsZero() {
		// the server gave no retry_after, fall back to the fixed cool-down
		resetAt = c.now().Add(c.cooldown)
	}

	c.mu.Lock()
	c.limitedUntil = resetAt
	c.limitErr = &core.RateLimitError{ResetAt: resetAt}
	c.mu.Unlock()
}

// scheduleRefreshLocked arms the proactive refresh timer at refreshLead
// before nominal expiry, or immediately for short-lived tokens. Any previous
// timer is cancelled first so at most one is outstanding.
func (c *Controller) scheduleRefreshLocked(lifetime time.Duration) {
	c.stopTimerLocked()
	if c.closed {
		return
	}

	delay := lifetime - refreshLead
	if delay < 0 {
		delay = 0
	}
	c.timer = c.newTimer(delay, c.refreshTick)
}

// refreshTick runs from the timer goroutine. Nobody is waiting on it, so a
// failure is logged and the token is left to be re-fetched by the next Token
// call that observes staleness.
func (c *Controller) refreshTick() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if _, err := c.Refresh(context.Background()); err != nil {
		c.logger.Warn().Err(err).Msg("scheduled token refresh failed")
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
