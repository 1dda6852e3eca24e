package pipeline

import (
	"strings"

	"github.com/systmms/secretclient/pkg/credential"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/transport"
)

// AuthPolicy attaches a bearer token from a credential provider.
type AuthPolicy struct {
	cred      credential.Provider
	scopes    []string
	allowHTTP bool
}

// NewAuthPolicy creates a policy requesting tokens for scopes from cred.
// Tokens are only sent over https unless allowHTTP is set.
func NewAuthPolicy(cred credential.Provider, scopes []string, allowHTTP bool) *AuthPolicy {
	return &AuthPolicy{
		cred:      cred,
		scopes:    append([]string(nil), scopes...),
		allowHTTP: allowHTTP,
	}
}

// Do sets the Authorization header and forwards the request. The response
// is returned unchanged.
func (p *AuthPolicy) Do(req *transport.Request, next Handler) (*transport.Response, error) {
	if !p.allowHTTP && !strings.EqualFold(req.URL.Scheme, "https") {
		return nil, scerrors.ConfigurationError{
			Field:      "endpoint",
			Value:      req.URL.Scheme,
			Message:    "bearer tokens are only sent over https",
			Suggestion: "Use an https endpoint",
		}
	}

	tok, err := p.cred.GetToken(next.Context(), p.scopes...)
	if err != nil {
		return nil, err
	}

	r := req.Clone()
	r.Header.Set("Authorization", "Bearer "+tok.Value)
	return next.Do(r)
}
