package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/systmms/secretclient/internal/logging"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/transport"
)

// Default retry configuration values
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 800 * time.Millisecond
	DefaultMaxDelay    = 60 * time.Second
)

// DefaultRetryStatusCodes are the statuses retried when RetryOptions.StatusCodes is empty.
var DefaultRetryStatusCodes = []int{
	http.StatusTooManyRequests,     // 429
	http.StatusInternalServerError, // 500
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

// RetryOptions configures RetryPolicy. Zero values select the defaults.
type RetryOptions struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	StatusCodes []int
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultRetryDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.Delay {
		o.MaxDelay = o.Delay
	}
	if len(o.StatusCodes) == 0 {
		o.StatusCodes = DefaultRetryStatusCodes
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	return o
}

// RetryPolicy resends idempotent requests that failed transiently.
type RetryPolicy struct {
	opts    RetryOptions
	logger  *logging.Logger
	metrics *Metrics
}

// NewRetryPolicy creates a retry policy. logger and metrics may be nil.
func NewRetryPolicy(opts RetryOptions, logger *logging.Logger, metrics *Metrics) *RetryPolicy {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RetryPolicy{opts: opts.withDefaults(), logger: logger, metrics: metrics}
}

// Do sends req until it succeeds, fails permanently, or attempts run out.
// The last attempt's response or error is returned as is.
func (p *RetryPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	ctx := next.Context()
	retryable := req.IsIdempotent()

	for attempt := 1; ; attempt++ {
		resp, err := next.Do(req.Clone())

		if attempt >= p.opts.MaxAttempts || !retryable || !p.shouldRetry(resp, err) || ctx.Err() != nil {
			return resp, err
		}

		wait := p.backoff(attempt, resp)
		if err != nil {
			p.logger.Debug("attempt %d/%d for %s %s failed, retrying in %s: %v",
				attempt, p.opts.MaxAttempts, req.Method, req.URL.Path, wait, err)
		} else {
			p.logger.Debug("attempt %d/%d for %s %s returned %d, retrying in %s",
				attempt, p.opts.MaxAttempts, req.Method, req.URL.Path, resp.StatusCode, wait)
		}
		p.metrics.observeRetry(req.Method)

		if err := p.opts.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry wait interrupted: %w", err)
		}
	}
}

func (p *RetryPolicy) shouldRetry(resp *transport.Response, err error) bool {
	if err != nil {
		return scerrors.IsRetryable(err)
	}
	return resp != nil && slices.Contains(p.opts.StatusCodes, resp.StatusCode)
}

// backoff honors Retry-After when the service sent one and otherwise uses
// exponential backoff with equal jitter, capped at MaxDelay.
func (p *RetryPolicy) backoff(attempt int, resp *transport.Response) time.Duration {
	if resp != nil && resp.Header.Get("Retry-After") != "" {
		hr := &http.Response{StatusCode: resp.StatusCode, Header: resp.Header}
		return retryablehttp.DefaultBackoff(p.opts.Delay, p.opts.MaxDelay, attempt, hr)
	}
	return equalJitter(p.opts.Delay, p.opts.MaxDelay, attempt)
}

// equalJitter returns a duration in [base/2, base] where base is
// Delay*2^(attempt-1) capped at max.
func equalJitter(min, max time.Duration, attempt int) time.Duration {
	base := min
	for i := 1; i < attempt && base < max; i++ {
		base *= 2
	}
	if base > max {
		base = max
	}
	half := base / 2
	if half <= 0 {
		return base
	}
	return half + rand.N(half+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
