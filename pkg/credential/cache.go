package credential

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default cache settings
const (
	// DefaultExpiryMargin is subtracted from a token's expiry so it is
	// refreshed before in-flight requests can be rejected.
	DefaultExpiryMargin   = 30 * time.Second
	DefaultRefreshTimeout = 30 * time.Second
)

// tokenCache stores the most recent token per scope set for one leaf source.
// Concurrent callers that find no usable token share a single acquisition.
type tokenCache struct {
	now            func() time.Time
	margin         time.Duration
	refreshTimeout time.Duration
	refreshes      prometheus.Counter

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	token    Token
	inflight *refresh
}

// refresh is the in-flight acquisition slot. token and err are written once
// before done is closed.
type refresh struct {
	done  chan struct{}
	token Token
	err   error
}

func newTokenCache(o *options) *tokenCache {
	return &tokenCache{
		now:            o.now,
		margin:         o.margin,
		refreshTimeout: o.refreshTimeout,
		refreshes:      o.refreshes,
		entries:        make(map[string]*cacheEntry),
	}
}

// get returns a cached token for scopes or waits on a shared refresh.
// A waiter whose ctx ends stops waiting; the refresh continues for others.
func (c *tokenCache) get(ctx context.Context, scopes []string, acquire func(context.Context) (Token, error)) (Token, error) {
	key := scopeKey(scopes)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	if e.token.ValidAt(c.now(), c.margin) {
		tok := e.token
		c.mu.Unlock()
		return tok, nil
	}
	r := e.inflight
	if r == nil {
		r = &refresh{done: make(chan struct{})}
		e.inflight = r
		go c.run(ctx, e, r, acquire)
	}
	c.mu.Unlock()

	select {
	case <-r.done:
		return r.token, r.err
	case <-ctx.Done():
		return Token{}, fmt.Errorf("stopped waiting for token: %w", ctx.Err())
	}
}

func (c *tokenCache) run(ctx context.Context, e *cacheEntry, r *refresh, acquire func(context.Context) (Token, error)) {
	// Detached from the first waiter's cancellation, bounded by its own timeout.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	if c.refreshes != nil {
		c.refreshes.Inc()
	}
	tok, err := acquire(rctx)

	c.mu.Lock()
	if err == nil {
		e.token = tok
	}
	e.inflight = nil
	r.token, r.err = tok, err
	c.mu.Unlock()

	close(r.done)
}

func scopeKey(scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
