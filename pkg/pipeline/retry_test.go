package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/pipeline"
	"github.com/systmms/secretclient/pkg/transport"
	"github.com/systmms/secretclient/tests/fakes"
)

// recordingSleep captures requested waits without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func (r *recordingSleep) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waits)
}

func newRequest(t *testing.T, method string) *transport.Request {
	t.Helper()
	req, err := transport.NewRequest(method, "https://vault.example.test/secrets/db")
	require.NoError(t, err)
	return req
}

func retryPipeline(tr transport.Transport, sleeper *recordingSleep, opts pipeline.RetryOptions) *pipeline.Pipeline {
	opts.Sleep = sleeper.sleep
	return pipeline.NewPipeline(tr, pipeline.NewRetryPolicy(opts, nil, nil))
}

func TestRetryPolicy_RetriesTransientStatusesUntilSuccess(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusOK, `{"ok":true}`),
	)
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{MaxAttempts: 3})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, tr.Calls())
	assert.Equal(t, 2, sleeper.count())
}

func TestRetryPolicy_ReturnsLastResponseWhenAttemptsRunOut(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusServiceUnavailable, `{"error":{"code":"Busy"}}`))
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{MaxAttempts: 3})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 3, tr.Calls())
	assert.Equal(t, 2, sleeper.count())
}

func TestRetryPolicy_DoesNotRetryPermanentStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict} {
		tr := fakes.NewScriptedTransport(fakes.Reply(status, ""))
		sleeper := &recordingSleep{}
		p := retryPipeline(tr, sleeper, pipeline.RetryOptions{})

		resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, 1, tr.Calls(), "status %d", status)
		assert.Zero(t, sleeper.count())
	}
}

func TestRetryPolicy_RetriesTransportErrors(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.Fail(&scerrors.TransportError{Op: "dial", Err: errors.New("connection refused")}),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, tr.Calls())
}

func TestRetryPolicy_DoesNotRetryNonIdempotentRequests(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusServiceUnavailable, ""))
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodPost))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, tr.Calls())

	// Marked idempotent by the caller, the same POST is retried.
	tr = fakes.NewScriptedTransport(
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	p = retryPipeline(tr, sleeper, pipeline.RetryOptions{})
	req := newRequest(t, http.MethodPost)
	req.Idempotent = true

	resp, err = p.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, tr.Calls())
}

func TestRetryPolicy_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	permanent := []error{
		scerrors.ConfigurationError{Field: "endpoint", Message: "bad"},
		&scerrors.AuthError{Source: "CLI", Err: errors.New("not logged in")},
		context.Canceled,
	}
	for _, perr := range permanent {
		tr := fakes.NewScriptedTransport(fakes.Fail(perr))
		sleeper := &recordingSleep{}
		p := retryPipeline(tr, sleeper, pipeline.RetryOptions{})

		_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
		require.Error(t, err)
		assert.Equal(t, 1, tr.Calls(), "%T", perr)
	}
}

func TestRetryPolicy_HonorsRetryAfter(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.ReplyWithHeader(http.StatusTooManyRequests, http.Header{"Retry-After": {"7"}}, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{Delay: time.Millisecond, MaxDelay: time.Minute})

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	require.Len(t, sleeper.waits, 1)
	assert.Equal(t, 7*time.Second, sleeper.waits[0])
}

func TestRetryPolicy_BackoffIsBoundedAndGrows(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusInternalServerError, ""))
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{
		MaxAttempts: 5,
		Delay:       100 * time.Millisecond,
		MaxDelay:    300 * time.Millisecond,
	})

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	require.Len(t, sleeper.waits, 4)

	bases := []time.Duration{100, 200, 300, 300}
	for i, w := range sleeper.waits {
		base := bases[i] * time.Millisecond
		assert.GreaterOrEqual(t, w, base/2, "attempt %d", i+1)
		assert.LessOrEqual(t, w, base, "attempt %d", i+1)
	}
}

func TestRetryPolicy_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusServiceUnavailable, ""))
	p := pipeline.NewPipeline(tr, pipeline.NewRetryPolicy(pipeline.RetryOptions{
		MaxAttempts: 5,
		Sleep: func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		},
	}, nil, nil))

	_, err := p.Do(ctx, newRequest(t, http.MethodGet))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.Calls())
}

func TestRetryPolicy_RequestTimeoutIsNotRetriedByDefault(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusRequestTimeout, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, 1, tr.Calls())
	assert.Zero(t, sleeper.count())
	assert.NotContains(t, pipeline.DefaultRetryStatusCodes, http.StatusRequestTimeout)
}

func TestRetryPolicy_CustomStatusCodes(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusConflict, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p := retryPipeline(tr, sleeper, pipeline.RetryOptions{StatusCodes: []int{http.StatusConflict}})

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRetryPolicy_CountsRetries(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusBadGateway, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p := pipeline.NewPipeline(tr,
		pipeline.NewRetryPolicy(pipeline.RetryOptions{Sleep: sleeper.sleep}, nil, metrics),
		pipeline.NewMetricsPolicy(metrics),
	)

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)

	count, err := promtest.GatherAndCount(reg, "secretclient_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = promtest.GatherAndCount(reg, "secretclient_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per status code")
}
