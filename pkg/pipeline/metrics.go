package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/secretclient/pkg/transport"
)

// Metrics holds the request instrumentation shared by MetricsPolicy and
// RetryPolicy. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	// TokenRefreshes counts credential acquisitions; pass it to
	// credential.WithRefreshCounter.
	TokenRefreshes prometheus.Counter
}

// NewMetrics registers the client metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secretclient_requests_total",
			Help: "Total number of HTTP attempts by method and status code",
		}, []string{"method", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secretclient_request_duration_seconds",
			Help:    "Duration of HTTP attempts",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secretclient_retries_total",
			Help: "Total number of retried attempts by method",
		}, []string{"method"}),
		TokenRefreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "secretclient_token_refreshes_total",
			Help: "Total number of bearer token acquisitions",
		}),
	}
}

func (m *Metrics) observeRetry(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}

func (m *Metrics) observe(method string, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// MetricsPolicy records a count and a duration for every attempt.
// Attempts that never produced a response are counted with code "error".
type MetricsPolicy struct {
	metrics *Metrics
}

// NewMetricsPolicy creates a policy recording into m.
func NewMetricsPolicy(m *Metrics) *MetricsPolicy {
	return &MetricsPolicy{metrics: m}
}

// Do forwards req and records the outcome.
func (p *MetricsPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	start := time.Now()
	resp, err := next.Do(req)

	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	p.metrics.observe(req.Method, code, time.Since(start))
	return resp, err
}
