package credential

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/systmms/secretclient/internal/logging"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// leaf is the cached, backend-delegating core shared by CLIToken,
// DevCLIToken, and ManagedIdentity.
type leaf struct {
	name     string
	acquirer Acquirer
	selector *IdentitySelector
	cache    *tokenCache
	logger   *logging.Logger
}

func newLeaf(o *options, acquirer Acquirer, selector *IdentitySelector) *leaf {
	return &leaf{
		name:     o.name,
		acquirer: acquirer,
		selector: selector,
		cache:    newTokenCache(o),
		logger:   o.logger,
	}
}

func (l *leaf) getToken(ctx context.Context, scopes []string) (Token, error) {
	if len(scopes) == 0 {
		return Token{}, scerrors.ConfigurationError{
			Field:   "scopes",
			Message: "at least one scope is required to request a token",
		}
	}

	return l.cache.get(ctx, scopes, func(ctx context.Context) (Token, error) {
		l.logger.Debug("%s: acquiring token for %v (%s)", l.name, scopes, l.selector)
		tok, err := l.acquirer.Acquire(ctx, scopes, l.selector)
		if err != nil {
			return Token{}, l.wrap(err)
		}
		if tok.IsZero() {
			return Token{}, &scerrors.AuthError{Source: l.name, Err: errors.New("backend returned an empty token")}
		}
		tok.Source = l.name
		return tok, nil
	})
}

// wrap converts a backend failure into an AuthError, preserving
// configuration errors as they are.
func (l *leaf) wrap(err error) error {
	var cfgErr scerrors.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	var authErr *scerrors.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &scerrors.AuthError{
		Source:    l.name,
		Err:       err,
		Transient: isTransientAcquireError(err),
	}
}

// isTransientAcquireError separates "try again later" from a definitive
// rejection by the identity backend.
func isTransientAcquireError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if scerrors.IsTransientNetwork(err) {
		return true
	}

	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) && authFailed.RawResponse != nil {
		return isTransientStatus(authFailed.RawResponse.StatusCode)
	}

	var svcErr *scerrors.ServiceError
	if errors.As(err, &svcErr) {
		return isTransientStatus(svcErr.StatusCode)
	}
	return false
}

func isTransientStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}
