// Package secretclient is a typed client for a Key Vault style secret store.
//
// It is a thin consumer of the client core: every operation builds a
// transport.Request, sends it through a pipeline.Pipeline, and wraps the
// reply in a response.Response or a pager.Pager.
//
// Example:
//
//	cred, err := credential.NewCLIToken()
//	if err != nil {
//	    return err
//	}
//	client, err := secretclient.NewClient("https://myvault.vault.azure.net", cred, nil)
//	if err != nil {
//	    return err
//	}
//	resp, err := client.GetSecret(ctx, "db-password", "")
//	if errors.IsNotFound(err) {
//	    // treat as absent
//	}
//	secret, err := resp.Body()
//
// Listing is lazy:
//
//	p := client.NewListSecretPropertiesPager()
//	for props, err := range p.Items(ctx) {
//	    ...
//	}
package secretclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/secretclient/pkg/credential"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/pager"
	"github.com/systmms/secretclient/pkg/pipeline"
	"github.com/systmms/secretclient/pkg/response"
	"github.com/systmms/secretclient/pkg/transport"
)

const (
	// DefaultAPIVersion is pinned on every request unless overridden.
	DefaultAPIVersion = "7.5"
	// DefaultScope is the token scope for Key Vault data plane access.
	DefaultScope = "https://vault.azure.net/.default"
	// ContinuationParam carries the continuation token on list requests.
	ContinuationParam = "continuationToken"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	pipeline.ClientOptions

	// Scope overrides DefaultScope, for sovereign clouds.
	Scope string
}

// Client issues secret store operations through a pipeline.
type Client struct {
	endpoint string
	pipeline transport.Transport
}

// NewClient creates a client for the store at endpoint. opts may be nil.
func NewClient(endpoint string, cred credential.Provider, opts *ClientOptions) (*Client, error) {
	base, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	var o ClientOptions
	if opts != nil {
		o = *opts
	}
	if o.APIVersion == "" {
		o.APIVersion = DefaultAPIVersion
	}
	scope := o.Scope
	if scope == "" {
		scope = DefaultScope
	}

	p, err := pipeline.New(o.ClientOptions, cred, scope)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: base, pipeline: p}, nil
}

// NewClientWithPipeline creates a client that sends through an existing
// transport, typically a custom pipeline.Pipeline.
func NewClientWithPipeline(endpoint string, t transport.Transport) (*Client, error) {
	base, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: base, pipeline: t}, nil
}

// Endpoint returns the store URL without a trailing slash.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetSecret fetches a secret. An empty version selects the current one.
func (c *Client) GetSecret(ctx context.Context, name, version string) (*response.Response[azsecrets.Secret], error) {
	if name == "" {
		return nil, scerrors.ConfigurationError{Field: "name", Message: "secret name is required"}
	}

	path := "/secrets/" + url.PathEscape(name)
	if version != "" {
		path += "/" + url.PathEscape(version)
	}
	req, err := c.newRequest(path)
	if err != nil {
		return nil, err
	}
	return response.Send(ctx, c.pipeline, req, response.JSON[azsecrets.Secret]())
}

// NewListSecretPropertiesPager lists the properties of every secret.
// Values are not included.
func (c *Client) NewListSecretPropertiesPager() *pager.Pager[azsecrets.SecretProperties] {
	return c.newPropertiesPager("/secrets")
}

// NewListSecretPropertyVersionsPager lists the properties of every version
// of the named secret.
func (c *Client) NewListSecretPropertyVersionsPager(name string) *pager.Pager[azsecrets.SecretProperties] {
	if name == "" {
		return pager.New(func(context.Context, *string) (*response.Response[pager.Page[azsecrets.SecretProperties]], error) {
			return nil, scerrors.ConfigurationError{Field: "name", Message: "secret name is required"}
		})
	}
	return c.newPropertiesPager("/secrets/" + url.PathEscape(name) + "/versions")
}

func (c *Client) newPropertiesPager(path string) *pager.Pager[azsecrets.SecretProperties] {
	fetch := pager.NewFetcher[azsecrets.SecretProperties](
		c.pipeline,
		func() (*transport.Request, error) { return c.newRequest(path) },
		pager.Query(ContinuationParam),
		nil,
	)
	return pager.New(fetch)
}

func (c *Client) newRequest(path string) (*transport.Request, error) {
	req, err := transport.NewRequest(http.MethodGet, c.endpoint+path)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func normalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", scerrors.ConfigurationError{
			Field:      "endpoint",
			Message:    "vault URL is required",
			Suggestion: "Set AZURE_KEYVAULT_URL or vault.url in the config file",
		}
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", scerrors.ConfigurationError{
			Field:   "endpoint",
			Value:   endpoint,
			Message: "vault URL must be absolute, e.g. https://myvault.vault.azure.net",
		}
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}
