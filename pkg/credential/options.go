package credential

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/systmms/secretclient/internal/logging"
	"github.com/systmms/secretclient/pkg/transport"
)

// Option customizes a credential source.
type Option func(*options)

type options struct {
	name           string
	acquirer       Acquirer
	tenantID       string
	now            func() time.Time
	margin         time.Duration
	refreshTimeout time.Duration
	refreshes      prometheus.Counter
	logger         *logging.Logger
	transport      transport.Transport
}

func newOptions(defaultName string, opts []Option) *options {
	o := &options{
		name:           defaultName,
		now:            time.Now,
		margin:         DefaultExpiryMargin,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithName overrides the source name used in logs and aggregate errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithAcquirer replaces the default backend of a leaf source.
func WithAcquirer(a Acquirer) Option {
	return func(o *options) {
		o.acquirer = a
	}
}

// WithTenantID pins token requests to a tenant.
func WithTenantID(tenantID string) Option {
	return func(o *options) {
		o.tenantID = tenantID
	}
}

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithExpiryMargin sets how long before expiry a cached token is refreshed.
func WithExpiryMargin(d time.Duration) Option {
	return func(o *options) {
		o.margin = d
	}
}

// WithRefreshTimeout bounds a single shared acquisition.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		o.refreshTimeout = d
	}
}

// WithRefreshCounter counts backend acquisitions.
func WithRefreshCounter(c prometheus.Counter) Option {
	return func(o *options) {
		o.refreshes = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransport sets the transport used by HTTP-based backends.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}
