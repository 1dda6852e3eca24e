// Package response wraps raw service replies in a typed envelope.
//
// A Response[T] owns the raw status, headers and body of a successful
// exchange. Status and headers can be read any number of times. The body is
// decoded lazily on the first call to Body and the result, value or error,
// is memoized:
//
//	resp, err := response.Send(ctx, pipeline, req, response.JSON[azsecrets.Secret]())
//	if err != nil {
//	    // *errors.ServiceError for non-2xx replies
//	    return err
//	}
//	secret, err := resp.Body()
//
// Non-2xx replies never become a Response; Classify turns them into a
// *errors.ServiceError carrying the status, service error code and raw body.
package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/transport"
)

// ErrConsumed is returned by Body after Deconstruct.
var ErrConsumed = errors.New("response body has been deconstructed")

// Decoder converts a raw body into T.
type Decoder[T any] func(body []byte) (T, error)

// JSON returns a Decoder that unmarshals JSON into T.
func JSON[T any]() Decoder[T] {
	return func(body []byte) (T, error) {
		var v T
		err := json.Unmarshal(body, &v)
		return v, err
	}
}

// Response is a successful reply with a lazily decoded body of type T.
type Response[T any] struct {
	status int
	header http.Header
	decode Decoder[T]

	mu       sync.Mutex
	body     []byte
	consumed bool

	once  sync.Once
	value T
	err   error
}

// New wraps raw. decode may be nil when the body is never needed as T.
func New[T any](raw *transport.Response, decode Decoder[T]) *Response[T] {
	if decode == nil {
		decode = JSON[T]()
	}
	return &Response[T]{
		status: raw.StatusCode,
		header: raw.Header,
		body:   raw.Body,
		decode: decode,
	}
}

// Status returns the HTTP status code.
func (r *Response[T]) Status() int {
	return r.status
}

// Header returns a copy of the response headers.
func (r *Response[T]) Header() http.Header {
	return r.header.Clone()
}

// Bytes returns a copy of the raw body, nil after Deconstruct.
func (r *Response[T]) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.body)
}

// Body decodes the body on first use. Later calls return the same value
// and error without decoding again.
func (r *Response[T]) Body() (T, error) {
	r.mu.Lock()
	consumed, body := r.consumed, r.body
	r.mu.Unlock()

	if consumed {
		var zero T
		return zero, ErrConsumed
	}

	r.once.Do(func() {
		v, err := r.decode(body)
		if err != nil {
			r.err = &scerrors.ParseError{
				StatusCode: r.status,
				Type:       fmt.Sprintf("%T", v),
				Body:       body,
				Err:        err,
			}
			return
		}
		r.value = v
	})
	return r.value, r.err
}

// Deconstruct hands the raw parts to the caller. The body is released and
// subsequent Body calls return ErrConsumed.
func (r *Response[T]) Deconstruct() (int, http.Header, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body := r.body
	r.body = nil
	r.consumed = true
	return r.status, r.header.Clone(), body
}

// Send runs req through t, classifies the reply and wraps a success.
func Send[T any](ctx context.Context, t transport.Transport, req *transport.Request, decode Decoder[T]) (*Response[T], error) {
	raw, err := t.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := Classify(raw); err != nil {
		return nil, err
	}
	return New(raw, decode), nil
}
