package credential

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/secretclient/internal/secure"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// ErrTokenExpired is returned by a StaticToken past its expiry.
var ErrTokenExpired = errors.New("static token has expired")

// StaticToken presents a caller-supplied token for every scope.
type StaticToken struct {
	name      string
	sealed    *secure.Sealed
	expiresOn time.Time
	now       func() time.Time
}

// NewStaticToken seals value for the lifetime of the source. When expiresOn
// is zero and value is a JWT, its exp claim is used; otherwise the token
// never expires from the client's point of view.
func NewStaticToken(value string, expiresOn time.Time, opts ...Option) (*StaticToken, error) {
	if value == "" {
		return nil, scerrors.ConfigurationError{
			Field:      "token",
			Message:    "static token value is empty",
			Suggestion: "Provide a bearer token or use another credential source",
		}
	}

	o := newOptions("StaticToken", opts)
	if expiresOn.IsZero() {
		if exp, ok := jwtExpiry(value); ok {
			expiresOn = exp
		}
	}

	return &StaticToken{
		name:      o.name,
		sealed:    secure.Seal(value),
		expiresOn: expiresOn,
		now:       o.now,
	}, nil
}

func (s *StaticToken) provider() {}

// Name returns the source name.
func (s *StaticToken) Name() string {
	return s.name
}

// ExpiresOn returns the configured expiry, zero for none.
func (s *StaticToken) ExpiresOn() time.Time {
	return s.expiresOn
}

// GetToken returns the static token regardless of scopes.
func (s *StaticToken) GetToken(ctx context.Context, _ ...string) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	if !s.expiresOn.IsZero() && !s.now().Before(s.expiresOn) {
		return Token{}, &scerrors.AuthError{Source: s.name, Err: ErrTokenExpired}
	}

	value, err := s.sealed.Open()
	if err != nil {
		return Token{}, &scerrors.AuthError{Source: s.name, Err: err}
	}
	return Token{Value: value, ExpiresOn: s.expiresOn, Source: s.name}, nil
}

// Close wipes the sealed token.
func (s *StaticToken) Close() {
	s.sealed.Destroy()
}
