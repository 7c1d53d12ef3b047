// Package tokens caches OAuth client-credentials tokens per identity domain.
//
// A cached token is reused until it is within RefreshSkew of expiry, or past
// half its lifetime when that is shorter than twice RefreshSkew. Refreshes
// are single-flight: concurrent callers that find the cache stale share one
// exchange instead of each starting their own.
package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"commerce-gateway/internal/model"
)

// Domain identifies an independent identity provider.
type Domain string

const (
	// Core is the primary CRM org.
	Core Domain = "core"
	// Marketing is the marketing-automation tenant.
	Marketing Domain = "marketing"
)

// RefreshSkew is how long before expiry a token stops being served from cache.
const RefreshSkew = 30 * time.Second

// DefaultExchangeTimeout bounds a single token exchange.
const DefaultExchangeTimeout = 30 * time.Second

// Token is a bearer token for one domain.
type Token struct {
	Domain      Domain
	Value       string
	InstanceURL string        // API base returned by the identity provider, if any
	ExpiresIn   time.Duration // lifetime reported by the exchanger
	ExpiresAt   time.Time     // set by the cache when stored
	Raw         []byte        // upstream token response, verbatim

	refreshAt time.Time
}

// Exchanger performs a client-credentials grant for one domain.
type Exchanger interface {
	Exchange(ctx context.Context) (*Token, error)
}

// Cache holds at most one token per domain.
type Cache struct {
	mu         sync.Mutex
	entries    map[Domain]*Token
	exchangers map[Domain]Exchanger

	group   singleflight.Group
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithExchangeTimeout overrides DefaultExchangeTimeout.
func WithExchangeTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// NewCache creates an empty cache. Domains without a registered exchanger
// report Configured() == false and fail with an auth error.
func NewCache(logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[Domain]*Token),
		exchangers: make(map[Domain]Exchanger),
		now:        time.Now,
		timeout:    DefaultExchangeTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register sets the exchanger for a domain. Call before serving traffic.
func (c *Cache) Register(domain Domain, ex Exchanger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchangers[domain] = ex
}

// Configured reports whether credentials exist for the domain.
func (c *Cache) Configured(domain Domain) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.exchangers[domain]
	return ok
}

// Bearer returns just the token value for the domain.
func (c *Cache) Bearer(ctx context.Context, domain Domain) (string, error) {
	tok, err := c.Token(ctx, domain)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Token returns a fresh token for the domain, exchanging credentials if the
// cached one is missing or inside the refresh window.
//
// If ctx is cancelled while waiting, Token returns ctx.Err() but the shared
// exchange keeps running for the other waiters.
func (c *Cache) Token(ctx context.Context, domain Domain) (*Token, error) {
	if tok := c.cached(domain); tok != nil {
		return tok, nil
	}

	c.mu.Lock()
	ex, ok := c.exchangers[domain]
	c.mu.Unlock()
	if !ok {
		return nil, model.NewAuthFailure(fmt.Sprintf("no client credentials configured for %s", domain), nil)
	}

	ch := c.group.DoChan(string(domain), func() (interface{}, error) {
		// Another flight may have finished between our cache check and now.
		if tok := c.cached(domain); tok != nil {
			return tok, nil
		}

		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		start := c.now()
		tok, err := ex.Exchange(exCtx)
		if err != nil {
			c.logger.Warn("token exchange failed",
				slog.String("domain", string(domain)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		if skew := c.store(domain, tok); skew < RefreshSkew {
			c.logger.Warn("token lifetime shorter than twice the refresh skew, refreshing at half-life",
				slog.String("domain", string(domain)),
				slog.Duration("expires_in", tok.ExpiresIn),
			)
		}
		c.logger.Info("token refreshed",
			slog.String("domain", string(domain)),
			slog.Time("expires_at", tok.ExpiresAt),
			slog.Duration("exchange", c.now().Sub(start)),
		)
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, model.NewAuthFailure("token exchange failed", res.Err)
		}
		return res.Val.(*Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cached returns the stored token if it is outside the refresh window.
func (c *Cache) cached(domain Domain) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.entries[domain]
	if !ok {
		return nil
	}
	if !c.now().Before(tok.refreshAt) {
		return nil
	}
	return tok
}

// store caches tok and returns the skew applied to it. Lifetimes shorter
// than twice RefreshSkew are refreshed at half-life instead, so a short-lived
// token is still reused for part of its life.
func (c *Cache) store(domain Domain, tok *Token) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	skew := RefreshSkew
	if tok.ExpiresIn < 2*RefreshSkew {
		skew = tok.ExpiresIn / 2
	}

	tok.Domain = domain
	tok.ExpiresAt = c.now().Add(tok.ExpiresIn)
	tok.refreshAt = tok.ExpiresAt.Add(-skew)
	c.entries[domain] = tok
	return skew
}
