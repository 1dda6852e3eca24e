// Package pager walks collection endpoints that return results one page at
// a time, following server-issued continuation tokens.
//
// A Pager is created per listing and used by a single goroutine. It fetches
// a page only when the caller asks for an item or page it does not already
// hold, and never fetches ahead:
//
//	p := pager.New(fetcher)
//	for item, err := range p.Items(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(item)
//	}
//
// A page whose NextToken is absent ends the listing. After that the pager
// reports exhaustion on every call; listing again requires a new Pager.
//
// When a fetch fails, the error is returned from the call that triggered it
// and the pager enters the failed state. Later calls return an error
// wrapping both ErrPagerFailed and the original cause. Retrying a fetch is
// the job of the pipeline underneath, not of the pager.
package pager

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/systmms/secretclient/pkg/response"
	"github.com/systmms/secretclient/pkg/transport"
)

// ErrPagerFailed is wrapped by every call made after a fetch failure.
var ErrPagerFailed = errors.New("pager failed on an earlier page")

// Page is one response from a collection endpoint.
type Page[T any] struct {
	Items []T `json:"items"`
	// NextToken is absent on the last page.
	NextToken *string `json:"nextToken,omitempty"`
}

// Fetcher issues one list request. token is nil for the first page.
type Fetcher[T any] func(ctx context.Context, token *string) (*response.Response[Page[T]], error)

// State is the position of a Pager in its lifecycle.
type State int

const (
	StateStart State = iota
	StateFetching
	StateHasPage
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateHasPage:
		return "has-page"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pager yields the items of a paged collection in server order.
type Pager[T any] struct {
	fetch Fetcher[T]

	state  State
	token  *string
	buffer []T
	// last is the most recently fetched page, used to describe a
	// partially consumed page returned by NextPage.
	last *response.Response[Page[T]]
	err  error
}

// New creates a pager over fetch.
func New[T any](fetch Fetcher[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// State returns the current state.
func (p *Pager[T]) State() State {
	return p.state
}

// More reports whether another call may yield an item or page.
func (p *Pager[T]) More() bool {
	switch p.state {
	case StateExhausted, StateFailed:
		return false
	case StateHasPage:
		return len(p.buffer) > 0 || p.token != nil
	default:
		return true
	}
}

// NextItem returns the next item, fetching pages as needed. It returns
// (zero, false, nil) once the collection is exhausted.
func (p *Pager[T]) NextItem(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		switch p.state {
		case StateFailed:
			return zero, false, p.failure()
		case StateExhausted:
			return zero, false, nil
		}

		if len(p.buffer) > 0 {
			item := p.buffer[0]
			p.buffer = p.buffer[1:]
			return item, true, nil
		}

		if p.state == StateHasPage && p.token == nil {
			p.state = StateExhausted
			continue
		}

		if _, err := p.fetchPage(ctx); err != nil {
			return zero, false, err
		}
	}
}

// NextPage returns the next page as a unit. It returns (nil, false, nil) once
// the collection is exhausted.
//
// If items of the current page were already taken with NextItem, the
// remaining items are returned first as a page of their own, carrying the
// status and headers of the page they came from.
func (p *Pager[T]) NextPage(ctx context.Context) (*response.Response[Page[T]], bool, error) {
	switch p.state {
	case StateFailed:
		return nil, false, p.failure()
	case StateExhausted:
		return nil, false, nil
	}

	if len(p.buffer) > 0 {
		rest := Page[T]{Items: p.buffer, NextToken: p.token}
		p.buffer = nil
		return remainder(p.last, rest), true, nil
	}

	if p.state == StateHasPage && p.token == nil {
		p.state = StateExhausted
		return nil, false, nil
	}

	resp, err := p.fetchPage(ctx)
	if err != nil {
		return nil, false, err
	}
	p.buffer = nil
	return resp, true, nil
}

// Items iterates over the remaining items. Iteration stops after the first
// error, which is yielded with a zero item.
func (p *Pager[T]) Items(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, ok, err := p.NextItem(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// Pages iterates over the remaining pages. Iteration stops after the first
// error, which is yielded with a nil page.
func (p *Pager[T]) Pages(ctx context.Context) iter.Seq2[*response.Response[Page[T]], error] {
	return func(yield func(*response.Response[Page[T]], error) bool) {
		for {
			page, ok, err := p.NextPage(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(page, nil) {
				return
			}
		}
	}
}

func (p *Pager[T]) fetchPage(ctx context.Context) (*response.Response[Page[T]], error) {
	p.state = StateFetching

	resp, err := p.fetch(ctx, p.token)
	if err != nil {
		return nil, p.fail(err)
	}
	page, err := resp.Body()
	if err != nil {
		return nil, p.fail(err)
	}

	p.token = page.NextToken
	if p.token != nil && *p.token == "" {
		p.token = nil
	}
	p.buffer = append([]T(nil), page.Items...)
	p.last = resp
	p.state = StateHasPage
	return resp, nil
}

func (p *Pager[T]) fail(err error) error {
	p.state = StateFailed
	p.err = err
	p.buffer = nil
	return err
}

func (p *Pager[T]) failure() error {
	return fmt.Errorf("%w: %w", ErrPagerFailed, p.err)
}

// remainder wraps the unconsumed part of a page in a response that shares
// the original page's status and headers.
func remainder[T any](from *response.Response[Page[T]], rest Page[T]) *response.Response[Page[T]] {
	raw := &transport.Response{StatusCode: from.Status(), Header: from.Header()}
	return response.New(raw, func([]byte) (Page[T], error) {
		return rest, nil
	})
}
