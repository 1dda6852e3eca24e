package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/systmms/secretclient/internal/logging"
	"github.com/systmms/secretclient/pkg/credential"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/pipeline"
	"github.com/systmms/secretclient/pkg/secretclient"
	"github.com/systmms/secretclient/pkg/transport"
)

// Sources returns the credential chain in evaluation order. Without an
// explicit chain, a token from the environment comes first, then a
// configured managed identity, then the developer CLIs.
func (d *Definition) Sources() []string {
	if len(d.Credential.Chain) > 0 {
		return d.Credential.Chain
	}
	var chain []string
	if d.token != "" {
		chain = append(chain, SourceStatic)
	}
	if d.Credential.ManagedIdentity.hasSelector() || d.Credential.ManagedIdentity.Endpoint != "" {
		chain = append(chain, SourceManagedIdentity)
	}
	return append(chain, SourceCLI, SourceDevCLI)
}

// BuildTransport creates the configured transport.
func (d *Definition) BuildTransport() (transport.Transport, error) {
	timeout := time.Duration(d.Transport.TimeoutMs) * time.Millisecond

	switch d.Transport.Type {
	case "", TransportHTTP:
		return transport.NewHTTPTransport(transport.HTTPOptions{
			Timeout:    timeout,
			CACertFile: d.Transport.CACert,
		})
	case TransportResty:
		if timeout == 0 {
			timeout = transport.DefaultTimeout
		}
		client := resty.New().SetTimeout(timeout)
		if d.Transport.CACert != "" {
			if _, err := os.Stat(d.Transport.CACert); err != nil {
				return nil, scerrors.ConfigurationError{
					Field:      "transport.ca_cert",
					Value:      d.Transport.CACert,
					Message:    fmt.Sprintf("failed to read CA certificate: %v", err),
					Suggestion: "Check the path and file permissions",
				}
			}
			client.SetRootCertificate(d.Transport.CACert)
		}
		return transport.NewRestyTransport(client), nil
	default:
		return nil, scerrors.ConfigurationError{
			Field:      "transport.type",
			Value:      d.Transport.Type,
			Message:    "unknown transport",
			Suggestion: "Use 'http' or 'resty'",
		}
	}
}

// BuildCredential creates the credential described by the chain. A chain
// of one source returns that source directly.
func (d *Definition) BuildCredential(t transport.Transport, logger *logging.Logger, metrics *pipeline.Metrics) (credential.Provider, error) {
	opts := []credential.Option{credential.WithLogger(logger), credential.WithTransport(t)}
	if d.Credential.TenantID != "" {
		opts = append(opts, credential.WithTenantID(d.Credential.TenantID))
	}
	if d.Credential.RefreshTimeoutMs > 0 {
		opts = append(opts, credential.WithRefreshTimeout(time.Duration(d.Credential.RefreshTimeoutMs)*time.Millisecond))
	}
	if metrics != nil {
		opts = append(opts, credential.WithRefreshCounter(metrics.TokenRefreshes))
	}

	names := d.Sources()
	sources := make([]credential.Provider, 0, len(names))
	for _, name := range names {
		p, err := d.buildSource(name, opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, p)
	}

	if len(sources) == 1 {
		return sources[0], nil
	}
	return credential.NewChained(sources, credential.WithLogger(logger))
}

func (d *Definition) buildSource(name string, opts []credential.Option) (credential.Provider, error) {
	switch name {
	case SourceStatic:
		if d.token == "" {
			return nil, scerrors.ConfigurationError{
				Field:      "credential.chain",
				Value:      name,
				Message:    "the static source needs a token",
				Suggestion: "Set SECRETCTL_TOKEN",
			}
		}
		return credential.NewStaticToken(string(d.token), time.Time{}, opts...)
	case SourceCLI:
		return credential.NewCLIToken(opts...)
	case SourceDevCLI:
		return credential.NewDevCLIToken(opts...)
	case SourceManagedIdentity:
		mi := d.Credential.ManagedIdentity
		selector := mi.selector()
		return credential.NewManagedIdentity(credential.ManagedIdentityOptions{
			Endpoint:     mi.Endpoint,
			APIVersion:   mi.APIVersion,
			UserAssigned: selector != nil,
			Selector:     selector,
		}, opts...)
	default:
		return nil, scerrors.ConfigurationError{
			Field:   "credential.chain",
			Value:   name,
			Message: "unknown credential source",
		}
	}
}

// ClientOptions maps the file onto secretclient options.
func (d *Definition) ClientOptions(t transport.Transport, logger *logging.Logger, metrics *pipeline.Metrics) *secretclient.ClientOptions {
	return &secretclient.ClientOptions{
		ClientOptions: pipeline.ClientOptions{
			Transport: t,
			Retry: pipeline.RetryOptions{
				MaxAttempts: d.Retry.MaxAttempts,
				Delay:       time.Duration(d.Retry.DelayMs) * time.Millisecond,
				MaxDelay:    time.Duration(d.Retry.MaxDelayMs) * time.Millisecond,
			},
			APIVersion: d.Vault.APIVersion,
			AllowHTTP:  d.Transport.AllowHTTP,
			Logger:     logger,
			Metrics:    metrics,
		},
		Scope: d.Vault.Scope,
	}
}

// NewClient builds the transport, credential and client in one step.
func (c *Config) NewClient(metrics *pipeline.Metrics) (*secretclient.Client, credential.Provider, error) {
	if c.Definition == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	d := c.Definition

	t, err := d.BuildTransport()
	if err != nil {
		return nil, nil, err
	}
	cred, err := d.BuildCredential(t, c.Logger, metrics)
	if err != nil {
		return nil, nil, err
	}
	client, err := secretclient.NewClient(d.Vault.URL, cred, d.ClientOptions(t, c.Logger, metrics))
	if err != nil {
		return nil, nil, err
	}
	return client, cred, nil
}

func (m ManagedIdentityConfig) hasSelector() bool {
	return m.ClientID != "" || m.ResourceID != "" || m.ObjectID != ""
}

func (m ManagedIdentityConfig) selector() *credential.IdentitySelector {
	switch {
	case m.ClientID != "":
		return &credential.IdentitySelector{Kind: credential.SelectorClientID, Value: m.ClientID}
	case m.ResourceID != "":
		return &credential.IdentitySelector{Kind: credential.SelectorResourceID, Value: m.ResourceID}
	case m.ObjectID != "":
		return &credential.IdentitySelector{Kind: credential.SelectorObjectID, Value: m.ObjectID}
	default:
		return nil
	}
}
