// Package auth provides the process-wide bearer token cache used for outbound vendor calls.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSafetyMargin is subtracted from every expires_in so a token is refreshed before the vendor rejects it.
const DefaultSafetyMargin = 30 * time.Second

// Refresher performs one exchange against an authorization endpoint.
type Refresher interface {
	Refresh(ctx context.Context) (accessToken string, expiresIn time.Duration, err error)
}

// Token is an access token and the instant after which it must not be used.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenCache hands out a valid access token, refreshing at most once per expiry window
// no matter how many callers race on an expired token.
type TokenCache struct {
	name      string
	refresher Refresher
	margin    time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	token *Token
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) { c.now = now }
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *TokenCache) { c.margin = d }
}

// NewTokenCache creates an empty cache. name is only used in log lines.
func NewTokenCache(name string, refresher Refresher, opts ...Option) *TokenCache {
	c := &TokenCache{
		name:      name,
		refresher: refresher,
		margin:    DefaultSafetyMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a cached token when still valid, otherwise refreshes under the exclusive lock.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	if tok, ok := c.valid(); ok {
		c.mu.RUnlock()
		return tok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if tok, ok := c.valid(); ok {
		return tok, nil
	}

	log.Info().Str("service", c.name).Msg("Requesting new access token")
	accessToken, expiresIn, err := c.refresher.Refresh(ctx)
	if err != nil {
		log.Error().Err(err).Str("service", c.name).Msg("Access token refresh failed")
		return "", err
	}

	c.token = &Token{
		AccessToken: accessToken,
		ExpiresAt:   c.now().Add(expiresIn - c.margin),
	}
	log.Info().Str("service", c.name).Dur("expiresIn", expiresIn).Time("expiresAt", c.token.ExpiresAt).Msg("Access token refreshed successfully")
	return accessToken, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// Cached returns a copy of the cached token, if any, without refreshing.
func (c *TokenCache) Cached() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return Token{}, false
	}
	return *c.token, true
}

// valid must be called with mu held.
func (c *TokenCache) valid() (string, bool) {
	if c.token != nil && c.now().Before(c.token.ExpiresAt) {
		return c.token.AccessToken, true
	}
	return "", false
}
