package credential

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// AzureAcquirer adapts any azcore.TokenCredential to the Acquirer contract.
// The selector argument is ignored: azidentity credentials bind their
// identity at construction.
type AzureAcquirer struct {
	Credential azcore.TokenCredential
	TenantID   string
}

// Acquire requests a token from the wrapped credential.
func (a *AzureAcquirer) Acquire(ctx context.Context, scopes []string, _ *IdentitySelector) (Token, error) {
	at, err := a.Credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes:   scopes,
		TenantID: a.TenantID,
	})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: at.Token, ExpiresOn: at.ExpiresOn}, nil
}

var _ Acquirer = (*AzureAcquirer)(nil)
