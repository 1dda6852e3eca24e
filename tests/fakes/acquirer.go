package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/secretclient/pkg/credential"
)

// CountingAcquirer is a credential backend that counts acquisitions and
// records the selector it was given each time.
type CountingAcquirer struct {
	// Value is the token value returned; defaults to "fake-token".
	Value string
	// TTL is the lifetime of issued tokens; defaults to one hour.
	TTL time.Duration
	// Err, when set, is returned instead of a token.
	Err error
	// Block, when set, delays every acquisition until it is closed.
	Block chan struct{}

	mu        sync.Mutex
	calls     int
	selectors []*credential.IdentitySelector
	scopes    [][]string
}

// Acquire implements credential.Acquirer.
func (a *CountingAcquirer) Acquire(ctx context.Context, scopes []string, selector *credential.IdentitySelector) (credential.Token, error) {
	a.mu.Lock()
	a.calls++
	a.selectors = append(a.selectors, selector)
	a.scopes = append(a.scopes, append([]string(nil), scopes...))
	block := a.Block
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return credential.Token{}, ctx.Err()
		}
	}

	if a.Err != nil {
		return credential.Token{}, a.Err
	}

	value := a.Value
	if value == "" {
		value = "fake-token"
	}
	ttl := a.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return credential.Token{Value: value, ExpiresOn: time.Now().Add(ttl)}, nil
}

// Calls returns the number of acquisitions.
func (a *CountingAcquirer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Selectors returns the selector passed to each acquisition in order.
func (a *CountingAcquirer) Selectors() []*credential.IdentitySelector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*credential.IdentitySelector(nil), a.selectors...)
}

// Scopes returns the scopes passed to each acquisition in order.
func (a *CountingAcquirer) Scopes() [][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]string(nil), a.scopes...)
}

var _ credential.Acquirer = (*CountingAcquirer)(nil)
