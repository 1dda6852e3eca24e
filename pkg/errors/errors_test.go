package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want scerrors.Kind
	}{
		{"nil", nil, scerrors.KindUnknown},
		{"plain", errors.New("boom"), scerrors.KindUnknown},
		{"config", scerrors.ConfigurationError{Field: "endpoint", Message: "required"}, scerrors.KindConfiguration},
		{"transport", &scerrors.TransportError{Op: "send", Err: errors.New("refused")}, scerrors.KindTransport},
		{"auth", &scerrors.AuthError{Source: "cli", Err: errors.New("not logged in")}, scerrors.KindAuth},
		{"chain", &scerrors.ChainedCredentialError{}, scerrors.KindAuth},
		{"chain with misconfigured member", &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
			{Source: "ManagedIdentity", Err: scerrors.ConfigurationError{Field: "scopes", Message: "exactly one scope is required"}},
			{Source: "AzureCLI", Err: &scerrors.AuthError{Source: "AzureCLI", Err: context.DeadlineExceeded, Transient: true}},
		}}, scerrors.KindAuth},
		{"301", &scerrors.ServiceError{StatusCode: 301}, scerrors.KindUnknown},
		{"100", &scerrors.ServiceError{StatusCode: 100}, scerrors.KindUnknown},
		{"499", &scerrors.ServiceError{StatusCode: 499}, scerrors.KindClient},
		{"599", &scerrors.ServiceError{StatusCode: 599}, scerrors.KindServer},
		{"404", &scerrors.ServiceError{StatusCode: 404}, scerrors.KindClient},
		{"503", &scerrors.ServiceError{StatusCode: 503}, scerrors.KindServer},
		{"parse", &scerrors.ParseError{StatusCode: 200, Err: errors.New("bad json")}, scerrors.KindParse},
		{"wrapped service", fmt.Errorf("get secret: %w", &scerrors.ServiceError{StatusCode: 500}), scerrors.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scerrors.KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	transient := &scerrors.AuthError{Source: "imds", Err: errors.New("timeout"), Transient: true}
	definitive := &scerrors.AuthError{Source: "cli", Err: errors.New("please run az login")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", &scerrors.TransportError{Op: "send", Err: errors.New("reset")}, true},
		{"transient auth", transient, true},
		{"definitive auth", definitive, false},
		{"config", scerrors.ConfigurationError{Message: "x"}, false},
		{"service", &scerrors.ServiceError{StatusCode: 503}, false},
		{"parse", &scerrors.ParseError{Err: errors.New("x")}, false},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"chain with transient member", &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
			{Source: "cli", Err: definitive},
			{Source: "imds", Err: transient},
		}}, true},
		{"chain with misconfigured and transient members", &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
			{Source: "ManagedIdentity", Err: scerrors.ConfigurationError{Field: "scopes", Message: "exactly one scope is required"}},
			{Source: "AzureCLI", Err: transient},
		}}, true},
		{"chain with misconfigured and definitive members", &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
			{Source: "ManagedIdentity", Err: scerrors.ConfigurationError{Message: "x"}},
			{Source: "AzureCLI", Err: definitive},
		}}, false},
		{"chain all definitive", &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
			{Source: "cli", Err: definitive},
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scerrors.IsRetryable(tt.err))
		})
	}
}

func TestChainedCredentialErrorListsFailuresInOrder(t *testing.T) {
	t.Parallel()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	chainErr := &scerrors.ChainedCredentialError{Failures: []scerrors.SourceFailure{
		{Source: "A", Err: errA},
		{Source: "B", Err: errB},
	}}

	assert.Equal(t, "no credential source succeeded:\n  A: a failed\n  B: b failed", chainErr.Error())
	assert.ErrorIs(t, chainErr, errA)
	assert.ErrorIs(t, chainErr, errB)
}

func TestServiceErrorHelpers(t *testing.T) {
	t.Parallel()

	withCode := fmt.Errorf("get: %w", &scerrors.ServiceError{StatusCode: http.StatusNotFound, ErrorCode: "SecretNotFound"})
	withoutCode := &scerrors.ServiceError{StatusCode: http.StatusNotFound}

	require.True(t, scerrors.IsNotFound(withCode))
	require.True(t, scerrors.IsNotFound(withoutCode))

	code, ok := scerrors.ErrorCode(withCode)
	assert.True(t, ok)
	assert.Equal(t, "SecretNotFound", code)

	_, ok = scerrors.ErrorCode(withoutCode)
	assert.False(t, ok)

	status, ok := scerrors.StatusCode(withCode)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)

	assert.Contains(t, withCode.Error(), "SecretNotFound")
}

func TestConfigurationErrorMessage(t *testing.T) {
	t.Parallel()

	err := scerrors.ConfigurationError{
		Field:      "identity.client_id",
		Message:    "user-assigned identity requires a selector",
		Suggestion: "set AZURE_USER_ASSIGNED_IDENTITY",
	}
	assert.Equal(t,
		"configuration error in field 'identity.client_id': user-assigned identity requires a selector (set AZURE_USER_ASSIGNED_IDENTITY)",
		err.Error())
}
