// Package transport is the lowest layer of the client: it performs a single
// HTTP exchange and nothing else. Authentication, retries, and pagination live
// in higher layers, so a custom Transport only has to move bytes.
package transport

import (
	"context"
	"net/http"
	"net/url"
)

// Transport sends one request and returns the raw response.
//
// Implementations must return a *errors.TransportError when the exchange
// could not be completed (DNS, TLS, connection refused, body read failure)
// and must never translate such a failure into an HTTP status.
// Implementations must be safe for concurrent use.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is a fully buffered outgoing request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
	// Idempotent marks a non-idempotent method (POST, PATCH) as safe to retry.
	Idempotent bool
}

// NewRequest builds a request for method and rawURL.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}, nil
}

// Clone returns a deep copy that can be modified without affecting r.
func (r *Request) Clone() *Request {
	c := *r
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		c.URL = &u
	}
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// IsIdempotent reports whether the request may be sent more than once.
func (r *Request) IsIdempotent() bool {
	if r.Idempotent {
		return true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete, http.MethodTrace:
		return true
	}
	return false
}

// SetQuery sets a single query parameter, replacing any existing value.
func (r *Request) SetQuery(key, value string) {
	q := r.URL.Query()
	q.Set(key, value)
	r.URL.RawQuery = q.Encode()
}

// Response is the raw result of an exchange. The body is fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
