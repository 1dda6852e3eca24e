package pipeline

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/systmms/secretclient/pkg/transport"
)

// RequestIDHeader carries the client-generated request id.
const RequestIDHeader = "x-ms-client-request-id"

// DefaultAPIVersionParam is the query parameter pinned by APIVersionPolicy.
const DefaultAPIVersionParam = "api-version"

// RequestIDPolicy stamps each operation with a unique id. The id is kept
// across retries so service logs can correlate attempts.
type RequestIDPolicy struct{}

// Do sets the request id unless the caller already provided one.
func (RequestIDPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return next.Do(req)
	}
	r := req.Clone()
	r.Header.Set(RequestIDHeader, uuid.NewString())
	return next.Do(r)
}

// APIVersionPolicy pins the service API version on every request.
type APIVersionPolicy struct {
	Version string
	// Param defaults to DefaultAPIVersionParam.
	Param string
}

// Do sets the version query parameter, replacing any caller value.
func (p APIVersionPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	if p.Version == "" {
		return next.Do(req)
	}
	param := p.Param
	if param == "" {
		param = DefaultAPIVersionParam
	}
	r := req.Clone()
	r.SetQuery(param, p.Version)
	return next.Do(r)
}

// HeaderPolicy adds fixed headers, such as User-Agent, to every request.
// Headers already present on the request are left alone.
type HeaderPolicy struct {
	Header http.Header
}

// Do copies the configured headers onto the request.
func (p HeaderPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	if len(p.Header) == 0 {
		return next.Do(req)
	}
	r := req.Clone()
	for key, values := range p.Header {
		if r.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	return next.Do(r)
}
