package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// OperationError adds operator guidance to a client error raised during
// operation. Configuration errors already carry their own suggestion and
// are returned unchanged.
func OperationError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if scerrors.KindOf(err) == scerrors.KindConfiguration {
		return err
	}

	return UserError{
		Message:    fmt.Sprintf("%s failed (%s error)", operation, scerrors.KindOf(err)),
		Details:    err.Error(),
		Suggestion: suggestionFor(err),
		Err:        err,
	}
}

// suggestionFor picks a hint from the error taxonomy, never from message text.
func suggestionFor(err error) string {
	var chainErr *scerrors.ChainedCredentialError
	if errors.As(err, &chainErr) {
		return "Sign in with 'az login' or 'azd auth login', or configure a managed identity. Run 'secretctl doctor' for details"
	}

	var authErr *scerrors.AuthError
	if errors.As(err, &authErr) {
		if authErr.Transient {
			return "The identity endpoint is unavailable. Wait a moment and try again"
		}
		return fmt.Sprintf("Check that the %s credential is signed in and has access to the vault", authErr.Source)
	}

	if status, ok := scerrors.StatusCode(err); ok {
		switch {
		case status == http.StatusNotFound:
			return "Verify the secret name. List secrets with 'secretctl list'"
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return "Grant the identity 'Get' and 'List' secret permissions on the vault"
		case status == http.StatusTooManyRequests:
			return "The vault is throttling requests. Wait a moment and try again"
		case status >= 500:
			return "The vault reported a server error. Try again later"
		}
	}

	switch scerrors.KindOf(err) {
	case scerrors.KindTransport:
		return "Unable to connect. Check your network and the vault URL"
	case scerrors.KindParse:
		return "The vault returned an unexpected response. Check the api_version setting"
	}
	return ""
}

// SimplifyError turns low-level file and syntax errors into UserErrors.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr scerrors.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}

	errStr := err.Error()

	if strings.Contains(errStr, "yaml:") {
		return UserError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
