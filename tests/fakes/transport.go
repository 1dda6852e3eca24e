package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/systmms/secretclient/pkg/transport"
)

// Step is one scripted transport outcome.
type Step struct {
	Status int
	Header http.Header
	Body   string
	Err    error
}

// Reply scripts a response with status and body.
func Reply(status int, body string) Step {
	return Step{Status: status, Body: body}
}

// ReplyWithHeader scripts a response carrying header.
func ReplyWithHeader(status int, header http.Header, body string) Step {
	return Step{Status: status, Header: header, Body: body}
}

// Fail scripts a transport-level failure.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedTransport returns its steps in order and records every request
// it receives. Once the script runs out the last step repeats.
type ScriptedTransport struct {
	mu       sync.Mutex
	steps    []Step
	requests []*transport.Request
}

// NewScriptedTransport creates a transport replaying steps.
func NewScriptedTransport(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

// Do records req and returns the next scripted outcome.
func (s *ScriptedTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req.Clone())
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("scripted transport has no steps")
	}
	step := s.steps[min(n, len(s.steps)-1)]
	s.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	header := step.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &transport.Response{StatusCode: step.Status, Header: header, Body: []byte(step.Body)}, nil
}

// Calls returns the number of requests received.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns copies of the received requests in order.
func (s *ScriptedTransport) Requests() []*transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*transport.Request, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Clone()
	}
	return out
}

var _ transport.Transport = (*ScriptedTransport)(nil)
