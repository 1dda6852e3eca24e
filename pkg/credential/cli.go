package credential

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// CLIToken uses the account signed in to the Azure CLI ("az login").
type CLIToken struct {
	*leaf
}

// NewCLIToken creates the source. The default backend shells out to az via
// azidentity; WithAcquirer replaces it.
func NewCLIToken(opts ...Option) (*CLIToken, error) {
	o := newOptions("AzureCLI", opts)

	acquirer := o.acquirer
	if acquirer == nil {
		cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
			TenantID: o.tenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure CLI credential: %w", err)
		}
		acquirer = &AzureAcquirer{Credential: cred, TenantID: o.tenantID}
	}

	return &CLIToken{leaf: newLeaf(o, acquirer, nil)}, nil
}

func (c *CLIToken) provider() {}

// Name returns the source name.
func (c *CLIToken) Name() string {
	return c.name
}

// GetToken returns a cached token or asks the CLI for a new one.
func (c *CLIToken) GetToken(ctx context.Context, scopes ...string) (Token, error) {
	return c.getToken(ctx, scopes)
}

// DevCLIToken uses the account signed in to the Azure Developer CLI
// ("azd auth login").
type DevCLIToken struct {
	*leaf
}

// NewDevCLIToken creates the source.
func NewDevCLIToken(opts ...Option) (*DevCLIToken, error) {
	o := newOptions("AzureDeveloperCLI", opts)

	acquirer := o.acquirer
	if acquirer == nil {
		cred, err := azidentity.NewAzureDeveloperCLICredential(&azidentity.AzureDeveloperCLICredentialOptions{
			TenantID: o.tenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Developer CLI credential: %w", err)
		}
		acquirer = &AzureAcquirer{Credential: cred, TenantID: o.tenantID}
	}

	return &DevCLIToken{leaf: newLeaf(o, acquirer, nil)}, nil
}

func (c *DevCLIToken) provider() {}

// Name returns the source name.
func (c *DevCLIToken) Name() string {
	return c.name
}

// GetToken returns a cached token or asks the developer CLI for a new one.
func (c *DevCLIToken) GetToken(ctx context.Context, scopes ...string) (Token, error) {
	return c.getToken(ctx, scopes)
}
