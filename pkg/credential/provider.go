// Package credential resolves short-lived bearer tokens from a closed set of
// identity sources.
//
// # Sources
//
// Every source is a Provider. The set of variants is fixed:
//
//   - StaticToken: a token supplied by the caller
//   - CLIToken: the Azure CLI's signed-in account
//   - DevCLIToken: the Azure Developer CLI's signed-in account
//   - ManagedIdentity: a system- or user-assigned managed identity
//   - Chained: an ordered list of the above, first success wins
//
// Leaf sources that talk to a backend (CLI, developer CLI, managed identity)
// cache their most recent token per scope set and coalesce concurrent
// refreshes onto a single in-flight acquisition. Chained keeps no cache of its
// own.
//
// Example:
//
//	mi, err := credential.NewManagedIdentity(credential.ManagedIdentityOptions{
//	    UserAssigned: true,
//	    Selector:     &credential.IdentitySelector{Kind: credential.SelectorClientID, Value: clientID},
//	})
//	if err != nil {
//	    return err
//	}
//	cli, err := credential.NewCLIToken()
//	if err != nil {
//	    return err
//	}
//	chain, err := credential.NewChained([]credential.Provider{mi, cli})
//	if err != nil {
//	    return err
//	}
//	tok, err := chain.GetToken(ctx, "https://vault.azure.net/.default")
//
// # Errors
//
// Failures are reported as *errors.AuthError with Transient set when the
// failure was a connectivity problem or a throttled/unavailable identity
// endpoint. A chain that exhausts every source returns
// *errors.ChainedCredentialError listing each source's failure in order.
package credential

import (
	"context"
	"fmt"
)

// Provider produces bearer tokens. The interface is sealed: only the
// variants declared in this package implement it.
type Provider interface {
	// GetToken returns a token valid for scopes.
	GetToken(ctx context.Context, scopes ...string) (Token, error)
	// Name identifies the source in logs and aggregate errors.
	Name() string

	provider()
}

// Acquirer is the backend contract a leaf source delegates to. It is called
// only when the leaf's cache has no usable token.
type Acquirer interface {
	Acquire(ctx context.Context, scopes []string, selector *IdentitySelector) (Token, error)
}

// AcquirerFunc adapts a function to the Acquirer interface.
type AcquirerFunc func(ctx context.Context, scopes []string, selector *IdentitySelector) (Token, error)

// Acquire calls f.
func (f AcquirerFunc) Acquire(ctx context.Context, scopes []string, selector *IdentitySelector) (Token, error) {
	return f(ctx, scopes, selector)
}

// SelectorKind names how a user-assigned managed identity is addressed.
type SelectorKind int

const (
	SelectorClientID SelectorKind = iota
	SelectorResourceID
	SelectorObjectID
)

// Valid reports whether k is one of the defined selector kinds.
func (k SelectorKind) Valid() bool {
	return k >= SelectorClientID && k <= SelectorObjectID
}

func (k SelectorKind) String() string {
	switch k {
	case SelectorClientID:
		return "client_id"
	case SelectorResourceID:
		return "resource_id"
	case SelectorObjectID:
		return "object_id"
	default:
		return fmt.Sprintf("SelectorKind(%d)", int(k))
	}
}

// IdentitySelector picks one user-assigned managed identity.
type IdentitySelector struct {
	Kind  SelectorKind
	Value string
}

func (s *IdentitySelector) String() string {
	if s == nil {
		return "system-assigned"
	}
	return s.Kind.String() + "=" + s.Value
}
