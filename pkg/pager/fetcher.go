package pager

import (
	"context"

	"github.com/systmms/secretclient/pkg/response"
	"github.com/systmms/secretclient/pkg/transport"
)

// Placement attaches a continuation token to an outgoing list request.
type Placement func(req *transport.Request, token string)

// Query places the token in the named query parameter.
func Query(name string) Placement {
	return func(req *transport.Request, token string) {
		req.SetQuery(name, token)
	}
}

// Header places the token in the named request header.
func Header(name string) Placement {
	return func(req *transport.Request, token string) {
		req.Header.Set(name, token)
	}
}

// NewFetcher returns a Fetcher that builds a fresh request for every page,
// places the continuation token on it, and sends it through t. decode
// defaults to JSON.
func NewFetcher[T any](t transport.Transport, newRequest func() (*transport.Request, error), place Placement, decode response.Decoder[Page[T]]) Fetcher[T] {
	if decode == nil {
		decode = response.JSON[Page[T]]()
	}
	return func(ctx context.Context, token *string) (*response.Response[Page[T]], error) {
		req, err := newRequest()
		if err != nil {
			return nil, err
		}
		if token != nil {
			place(req, *token)
		}
		return response.Send(ctx, t, req, decode)
	}
}
