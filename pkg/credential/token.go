package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// errTokenNotSerializable is returned by Token.MarshalJSON.
var errTokenNotSerializable = errors.New("credential: tokens are not serializable")

// Token is an issued bearer token. The value never appears in formatted
// output or JSON.
type Token struct {
	Value     string
	ExpiresOn time.Time
	// Source names the credential source that issued the token.
	Source string
}

// IsZero reports whether t holds no token.
func (t Token) IsZero() bool {
	return t.Value == ""
}

// ValidAt reports whether t can still be presented at now, leaving margin
// before its expiry. A token with no expiry is never considered cacheable.
func (t Token) ValidAt(now time.Time, margin time.Duration) bool {
	if t.IsZero() || t.ExpiresOn.IsZero() {
		return false
	}
	return now.Before(t.ExpiresOn.Add(-margin))
}

func (t Token) String() string {
	return "[REDACTED]"
}

func (t Token) GoString() string {
	return "credential.Token{[REDACTED]}"
}

// MarshalJSON refuses to serialize the token.
func (t Token) MarshalJSON() ([]byte, error) {
	return nil, errTokenNotSerializable
}

// jwtExpiry reads the exp claim from a JWT without verifying its signature.
// The client only uses it to decide when to stop presenting the token.
func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
