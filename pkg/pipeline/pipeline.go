// Package pipeline runs requests through an ordered list of policies before
// they reach a transport.
//
// A Policy sees the request on its way out and the response on its way
// back. It forwards the request by calling next.Do, which runs the remaining
// policies and finally the transport. A policy may call next.Do more than
// once (RetryPolicy) or not at all (AuthPolicy refusing an insecure URL).
//
// Policies must not mutate the request they are given; they clone it first.
//
// New assembles the standard client pipeline:
//
//	per-call policies → request id → api-version → retry → auth →
//	per-retry policies → logging → metrics → transport
//
// Policies before RetryPolicy run once per operation. Policies after it run
// once per attempt, so every attempt gets a fresh token and its own log line.
package pipeline

import (
	"context"

	"github.com/systmms/secretclient/pkg/transport"
)

// Policy is one stage of a Pipeline.
type Policy interface {
	Do(req *transport.Request, next Handler) (*transport.Response, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(req *transport.Request, next Handler) (*transport.Response, error)

// Do calls f.
func (f PolicyFunc) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	return f(req, next)
}

// Handler forwards a request to the rest of the pipeline.
type Handler struct {
	ctx       context.Context
	policies  []Policy
	transport transport.Transport
}

// Context returns the context of the operation being sent.
func (h Handler) Context() context.Context {
	return h.ctx
}

// Do runs the next policy, or the transport when no policies remain.
func (h Handler) Do(req *transport.Request) (*transport.Response, error) {
	if len(h.policies) == 0 {
		return h.transport.Do(h.ctx, req)
	}
	next := Handler{ctx: h.ctx, policies: h.policies[1:], transport: h.transport}
	return h.policies[0].Do(req, next)
}

// Pipeline is an ordered list of policies ending in a transport. It
// implements transport.Transport and is safe for concurrent use.
type Pipeline struct {
	policies  []Policy
	transport transport.Transport
}

// NewPipeline creates a pipeline running policies in order before t.
func NewPipeline(t transport.Transport, policies ...Policy) *Pipeline {
	return &Pipeline{
		policies:  append([]Policy(nil), policies...),
		transport: t,
	}
}

// Do sends a copy of req through the pipeline. req itself is not modified.
func (p *Pipeline) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	h := Handler{ctx: ctx, policies: p.policies, transport: p.transport}
	return h.Do(req.Clone())
}

// Policies returns the pipeline stages in order.
func (p *Pipeline) Policies() []Policy {
	return append([]Policy(nil), p.policies...)
}

var _ transport.Transport = (*Pipeline)(nil)
