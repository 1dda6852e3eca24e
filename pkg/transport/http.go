package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// Default HTTP transport settings
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// HTTPOptions configures the default net/http transport.
type HTTPOptions struct {
	// Timeout bounds a whole exchange including reading the body. Zero uses DefaultTimeout,
	// a negative value disables the timeout.
	Timeout time.Duration
	// DisableCompression turns off transparent gzip negotiation.
	DisableCompression bool
	MaxIdleConns       int
	// MaxIdleConnsPerHost of -1 disables connection reuse entirely.
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	// CACertFile adds a PEM bundle to the trusted roots.
	CACertFile         string
	InsecureSkipVerify bool
}

// HTTPTransport is the default Transport, backed by a single shared *http.Client
// so that the connection pool is reused by every request sent through it.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates the default transport.
func NewHTTPTransport(opts HTTPOptions) (*HTTPTransport, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.CACertFile != "" {
		caCert, err := os.ReadFile(opts.CACertFile)
		if err != nil {
			return nil, scerrors.ConfigurationError{
				Field:      "transport.ca_cert",
				Value:      opts.CACertFile,
				Message:    fmt.Sprintf("failed to read CA certificate: %v", err),
				Suggestion: "Check the path and file permissions",
			}
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, scerrors.ConfigurationError{
				Field:   "transport.ca_cert",
				Value:   opts.CACertFile,
				Message: "failed to parse CA certificate",
			}
		}
		tlsConfig.RootCAs = pool
	}

	if opts.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		DisableCompression:  opts.DisableCompression,
		MaxIdleConns:        orDefault(opts.MaxIdleConns, DefaultMaxIdleConns),
		MaxIdleConnsPerHost: orDefault(opts.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost),
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		IdleConnTimeout:     orDefault(opts.IdleConnTimeout, DefaultIdleConnTimeout),
		TLSHandshakeTimeout: orDefault(opts.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if opts.MaxIdleConnsPerHost < 0 {
		t.DisableKeepAlives = true
		t.MaxIdleConnsPerHost = 0
	}

	timeout := orDefault(opts.Timeout, DefaultTimeout)
	if timeout < 0 {
		timeout = 0
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: t,
			Timeout:   timeout,
			// Redirects are surfaced to the caller like any other status.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// NewHTTPTransportFromClient wraps an existing client, for callers that need
// full control of the net/http stack.
func NewHTTPTransportFromClient(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPTransport{client: client}
}

// Do executes req with the shared client.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, &scerrors.TransportError{Op: "build", Method: req.Method, URL: redactURL(req), Err: err}
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &scerrors.TransportError{Op: sendOp(err), Method: req.Method, URL: redactURL(req), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &scerrors.TransportError{Op: "read", Method: req.Method, URL: redactURL(req), Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// sendOp names the phase a send failure happened in.
func sendOp(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "tls"
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return "tls"
	}
	return "send"
}

func redactURL(req *Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.Redacted()
}

func orDefault[T int | time.Duration](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}

var _ Transport = (*HTTPTransport)(nil)
