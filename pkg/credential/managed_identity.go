package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// ManagedIdentityOptions configures a ManagedIdentity source.
type ManagedIdentityOptions struct {
	// Endpoint overrides the identity endpoint. When set, tokens are fetched
	// directly over HTTP instead of through azidentity's endpoint discovery.
	Endpoint string
	// APIVersion is sent to Endpoint; defaults to DefaultIMDSAPIVersion.
	APIVersion string
	// UserAssigned requires Selector to be set.
	UserAssigned bool
	Selector     *IdentitySelector
}

// ManagedIdentity acquires tokens for the identity assigned to the host.
type ManagedIdentity struct {
	*leaf
	endpoint string
}

// NewManagedIdentity validates mi and creates the source. A user-assigned
// identity without a selector is a configuration error.
func NewManagedIdentity(mi ManagedIdentityOptions, opts ...Option) (*ManagedIdentity, error) {
	if mi.UserAssigned && mi.Selector == nil {
		return nil, scerrors.ConfigurationError{
			Field:      "managed_identity.selector",
			Message:    "a user-assigned managed identity requires a client ID, resource ID, or object ID",
			Suggestion: "Set AZURE_USER_ASSIGNED_IDENTITY or identity.client_id",
		}
	}
	if mi.Selector != nil && !mi.Selector.Kind.Valid() {
		return nil, scerrors.ConfigurationError{
			Field:   "managed_identity.selector",
			Value:   mi.Selector.Kind.String(),
			Message: "unknown identity selector kind",
		}
	}
	if mi.Selector != nil && strings.TrimSpace(mi.Selector.Value) == "" {
		return nil, scerrors.ConfigurationError{
			Field:   "managed_identity.selector",
			Value:   mi.Selector.Kind.String(),
			Message: "identity selector value is empty",
		}
	}

	o := newOptions("ManagedIdentity", opts)

	acquirer := o.acquirer
	if acquirer == nil {
		var err error
		if mi.Endpoint != "" {
			acquirer, err = newIMDSAcquirer(mi.Endpoint, mi.APIVersion, o.transport)
		} else {
			acquirer, err = newAzureManagedIdentityAcquirer(mi.Selector)
		}
		if err != nil {
			return nil, err
		}
	}

	return &ManagedIdentity{
		leaf:     newLeaf(o, acquirer, mi.Selector),
		endpoint: mi.Endpoint,
	}, nil
}

func (m *ManagedIdentity) provider() {}

// Name returns the source name.
func (m *ManagedIdentity) Name() string {
	return m.name
}

// Selector returns the configured user-assigned identity, nil for system-assigned.
func (m *ManagedIdentity) Selector() *IdentitySelector {
	return m.selector
}

// GetToken returns a cached token or requests one from the identity endpoint.
// Managed identity tokens are issued for a single resource.
func (m *ManagedIdentity) GetToken(ctx context.Context, scopes ...string) (Token, error) {
	if len(scopes) > 1 {
		return Token{}, scerrors.ConfigurationError{
			Field:   "scopes",
			Value:   scopes,
			Message: "managed identity tokens support exactly one scope",
		}
	}
	return m.getToken(ctx, scopes)
}

func newAzureManagedIdentityAcquirer(selector *IdentitySelector) (Acquirer, error) {
	options := &azidentity.ManagedIdentityCredentialOptions{}
	if selector != nil {
		switch selector.Kind {
		case SelectorClientID:
			options.ID = azidentity.ClientID(selector.Value)
		case SelectorResourceID:
			options.ID = azidentity.ResourceID(selector.Value)
		case SelectorObjectID:
			options.ID = azidentity.ObjectID(selector.Value)
		default:
			return nil, scerrors.ConfigurationError{
				Field:   "managed_identity.selector",
				Value:   selector.Kind,
				Message: "unknown identity selector kind",
			}
		}
	}

	cred, err := azidentity.NewManagedIdentityCredential(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create managed identity credential: %w", err)
	}
	return &AzureAcquirer{Credential: cred}, nil
}
