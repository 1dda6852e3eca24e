package pipeline

import (
	"net/http"

	"github.com/systmms/secretclient/internal/logging"
	"github.com/systmms/secretclient/pkg/credential"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/transport"
)

// DefaultUserAgent is sent when ClientOptions.UserAgent is empty.
const DefaultUserAgent = "secretclient-go"

// ClientOptions configures the pipeline of a service client. The zero value
// is usable; a single ClientOptions may be shared by several clients.
type ClientOptions struct {
	// Transport defaults to an HTTPTransport with default settings.
	Transport transport.Transport
	Retry     RetryOptions
	// APIVersion is pinned on every request when set.
	APIVersion string
	UserAgent  string
	// PerCallPolicies run once per operation, before retries.
	PerCallPolicies []Policy
	// PerRetryPolicies run on every attempt, after authentication.
	PerRetryPolicies []Policy
	// AllowHTTP permits sending bearer tokens to plain http endpoints.
	AllowHTTP bool
	Logger    *logging.Logger
	Metrics   *Metrics
}

// New assembles the standard client pipeline authenticating with cred.
func New(opts ClientOptions, cred credential.Provider, scopes ...string) (*Pipeline, error) {
	if cred == nil {
		return nil, scerrors.ConfigurationError{
			Field:   "credential",
			Message: "a credential is required",
		}
	}
	if len(scopes) == 0 {
		return nil, scerrors.ConfigurationError{
			Field:   "scopes",
			Message: "at least one token scope is required",
		}
	}

	t := opts.Transport
	if t == nil {
		var err error
		t, err = transport.NewHTTPTransport(transport.HTTPOptions{})
		if err != nil {
			return nil, err
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	policies := make([]Policy, 0, len(opts.PerCallPolicies)+len(opts.PerRetryPolicies)+7)
	policies = append(policies, opts.PerCallPolicies...)
	policies = append(policies,
		HeaderPolicy{Header: http.Header{"User-Agent": {userAgent}}},
		RequestIDPolicy{},
		APIVersionPolicy{Version: opts.APIVersion},
		NewRetryPolicy(opts.Retry, opts.Logger, opts.Metrics),
		NewAuthPolicy(cred, scopes, opts.AllowHTTP),
	)
	policies = append(policies, opts.PerRetryPolicies...)
	policies = append(policies, NewLoggingPolicy(opts.Logger))
	if opts.Metrics != nil {
		policies = append(policies, NewMetricsPolicy(opts.Metrics))
	}

	return NewPipeline(t, policies...), nil
}
