package transport

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// RestyTransport sends requests through a go-resty client. It is an
// alternative to HTTPTransport for callers already standardised on resty.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport wraps client; nil creates a client with DefaultTimeout.
//
// The given client is modified in place: its retry count is set to zero,
// since retries belong to the pipeline, and redirects are no longer
// followed so that 3xx responses reach the caller as HTTPTransport does.
func NewRestyTransport(client *resty.Client) *RestyTransport {
	if client == nil {
		client = resty.New().SetTimeout(DefaultTimeout)
	}
	client.SetRetryCount(0)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	return &RestyTransport{client: client}
}

// Do executes req with the wrapped resty client.
func (t *RestyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	r := t.client.R().SetContext(ctx)
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL.String())
	if err != nil {
		return nil, &scerrors.TransportError{Op: sendOp(err), Method: req.Method, URL: redactURL(req), Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

var _ Transport = (*RestyTransport)(nil)
