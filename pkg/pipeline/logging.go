package pipeline

import (
	"net/url"
	"strings"
	"time"

	"github.com/systmms/secretclient/internal/logging"
	"github.com/systmms/secretclient/pkg/transport"
)

// sensitiveQueryParams carry credentials when they appear in a URL.
var sensitiveQueryParams = []string{"sig", "code", "token", "access_token", "client_secret", "password"}

// LoggingPolicy writes one debug line per attempt. Credentials in headers
// and in sensitive query parameters are redacted.
type LoggingPolicy struct {
	logger *logging.Logger
	now    func() time.Time
}

// NewLoggingPolicy creates a logging policy writing to logger.
func NewLoggingPolicy(logger *logging.Logger) *LoggingPolicy {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LoggingPolicy{logger: logger, now: time.Now}
}

// Do logs the request and its outcome.
func (p *LoggingPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	if !p.logger.DebugEnabled() {
		return next.Do(req)
	}

	u := *req.URL
	u.User = nil
	target := logging.Redact(u.String(), queryCredentials(u.Query()))
	p.logger.Debug("→ %s %s headers=%v", req.Method, target, logging.RedactHeaders(req.Header))

	start := p.now()
	resp, err := next.Do(req)
	elapsed := p.now().Sub(start).Round(time.Millisecond)

	if err != nil {
		p.logger.Debug("← %s %s failed after %s: %v", req.Method, u.Path, elapsed, err)
		return resp, err
	}
	p.logger.Debug("← %s %s %d (%s, %d bytes)", req.Method, u.Path, resp.StatusCode, elapsed, len(resp.Body))
	return resp, nil
}

func queryCredentials(q url.Values) []string {
	var secrets []string
	for key, values := range q {
		for _, name := range sensitiveQueryParams {
			if strings.EqualFold(key, name) {
				for _, v := range values {
					secrets = append(secrets, v, url.QueryEscape(v))
				}
			}
		}
	}
	return secrets
}
