package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/response"
	"github.com/systmms/secretclient/pkg/transport"
)

// DefaultIMDSAPIVersion is the identity endpoint API version.
const DefaultIMDSAPIVersion = "2018-02-01"

// imdsAcquirer fetches managed identity tokens from an IMDS-compatible endpoint.
type imdsAcquirer struct {
	endpoint   string
	apiVersion string
	transport  transport.Transport
}

type imdsTokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresOn   json.RawMessage `json:"expires_on"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
	TokenType   string          `json:"token_type"`
}

func newIMDSAcquirer(endpoint, apiVersion string, t transport.Transport) (*imdsAcquirer, error) {
	if _, err := transport.NewRequest(http.MethodGet, endpoint); err != nil {
		return nil, scerrors.ConfigurationError{
			Field:   "managed_identity.endpoint",
			Value:   endpoint,
			Message: fmt.Sprintf("invalid endpoint: %v", err),
		}
	}
	if apiVersion == "" {
		apiVersion = DefaultIMDSAPIVersion
	}
	if t == nil {
		var err error
		t, err = transport.NewHTTPTransport(transport.HTTPOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
	}
	return &imdsAcquirer{endpoint: endpoint, apiVersion: apiVersion, transport: t}, nil
}

// Acquire requests a token for the single resource named by scopes.
func (a *imdsAcquirer) Acquire(ctx context.Context, scopes []string, selector *IdentitySelector) (Token, error) {
	req, err := transport.NewRequest(http.MethodGet, a.endpoint)
	if err != nil {
		return Token{}, err
	}
	q := req.URL.Query()
	q.Set("api-version", a.apiVersion)
	q.Set("resource", strings.TrimSuffix(scopes[0], "/.default"))
	if selector != nil {
		switch selector.Kind {
		case SelectorClientID:
			q.Set("client_id", selector.Value)
		case SelectorResourceID:
			q.Set("msi_res_id", selector.Value)
		case SelectorObjectID:
			q.Set("object_id", selector.Value)
		default:
			return Token{}, scerrors.ConfigurationError{
				Field:   "managed_identity.selector",
				Value:   selector.Kind.String(),
				Message: "unknown identity selector kind",
			}
		}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Metadata", "true")

	resp, err := a.transport.Do(ctx, req)
	if err != nil {
		return Token{}, err
	}
	if err := response.Classify(resp); err != nil {
		return Token{}, err
	}

	var body imdsTokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Token{}, &scerrors.ParseError{StatusCode: resp.StatusCode, Type: "imds token", Body: resp.Body, Err: err}
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("identity endpoint returned no access_token")
	}

	expiresOn, err := parseExpiry(body.ExpiresOn, body.ExpiresIn, time.Now())
	if err != nil {
		return Token{}, &scerrors.ParseError{StatusCode: resp.StatusCode, Type: "imds token", Body: resp.Body, Err: err}
	}
	return Token{Value: body.AccessToken, ExpiresOn: expiresOn}, nil
}

// parseExpiry accepts expires_on as unix seconds (string or number), falling
// back to expires_in relative to now.
func parseExpiry(expiresOn, expiresIn json.RawMessage, now time.Time) (time.Time, error) {
	if secs, ok := parseSeconds(expiresOn); ok {
		return time.Unix(secs, 0), nil
	}
	if secs, ok := parseSeconds(expiresIn); ok {
		return now.Add(time.Duration(secs) * time.Second), nil
	}
	return time.Time{}, fmt.Errorf("token response has no usable expires_on or expires_in")
}

func parseSeconds(raw json.RawMessage) (int64, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
