package credential

import (
	"context"
	"strings"

	"github.com/systmms/secretclient/internal/logging"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// Chained tries its sources in order and returns the first token obtained.
type Chained struct {
	name    string
	sources []Provider
	logger  *logging.Logger
}

// NewChained creates a chain over sources. At least one source is required.
func NewChained(sources []Provider, opts ...Option) (*Chained, error) {
	if len(sources) == 0 {
		return nil, scerrors.ConfigurationError{
			Field:   "credential.chain",
			Message: "a credential chain needs at least one source",
		}
	}
	for i, s := range sources {
		if s == nil {
			return nil, scerrors.ConfigurationError{
				Field:   "credential.chain",
				Value:   i,
				Message: "credential chain member is nil",
			}
		}
	}

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	o := newOptions("Chained("+strings.Join(names, ",")+")", opts)

	return &Chained{
		name:    o.name,
		sources: append([]Provider(nil), sources...),
		logger:  o.logger,
	}, nil
}

func (c *Chained) provider() {}

// Name returns the source name.
func (c *Chained) Name() string {
	return c.name
}

// Sources returns the chain members in try order.
func (c *Chained) Sources() []Provider {
	return append([]Provider(nil), c.sources...)
}

// GetToken returns the first successful member's token. When every member
// fails the error is a *errors.ChainedCredentialError listing each failure.
func (c *Chained) GetToken(ctx context.Context, scopes ...string) (Token, error) {
	failures := make([]scerrors.SourceFailure, 0, len(c.sources))

	for _, source := range c.sources {
		tok, err := source.GetToken(ctx, scopes...)
		if err == nil {
			c.logger.Debug("%s: using token from %s", c.name, source.Name())
			return tok, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Token{}, err
		}

		c.logger.Debug("%s: %s unavailable: %v", c.name, source.Name(), err)
		failures = append(failures, scerrors.SourceFailure{Source: source.Name(), Err: err})
	}

	return Token{}, &scerrors.ChainedCredentialError{Failures: failures}
}
