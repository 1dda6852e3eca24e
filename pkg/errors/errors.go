// Package errors defines the error taxonomy shared by every layer of the client.
//
// Callers branch on the concrete types with the standard library's errors.As:
//
//	var svcErr *scerrors.ServiceError
//	if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
//	    if svcErr.ErrorCode != "" {
//	        // the service says the resource is definitively absent
//	    }
//	}
//
// The kinds are:
//   - ConfigurationError: missing or invalid setting, fatal, never retried
//   - TransportError: connectivity failure below HTTP (DNS, TLS, refused)
//   - AuthError / ChainedCredentialError: no usable bearer token
//   - ServiceError: the service answered with a non-2xx status
//   - ParseError: the service answered 2xx but the body had an unexpected shape
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the coarse classification of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindTransport
	KindAuth
	// KindClient is a 4xx service response.
	KindClient
	// KindServer is a 5xx service response.
	KindServer
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// ConfigurationError represents a missing or invalid client setting.
type ConfigurationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}

	return msg
}

// TransportError wraps a failure to complete an HTTP exchange at all.
type TransportError struct {
	Op     string // "dial", "tls", "send", "read"
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s error for %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError is returned when a credential source cannot produce a token.
type AuthError struct {
	Source    string
	Err       error
	Transient bool
}

func (e *AuthError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s: transient token acquisition failure: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SourceFailure records why one member of a credential chain was skipped.
type SourceFailure struct {
	Source string
	Err    error
}

// ChainedCredentialError is returned when every member of a chain failed.
// Failures are listed in the order the sources were tried.
type ChainedCredentialError struct {
	Failures []SourceFailure
}

func (e *ChainedCredentialError) Error() string {
	var b strings.Builder
	b.WriteString("no credential source succeeded:")
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Source)
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap exposes each member failure to errors.Is and errors.As.
func (e *ChainedCredentialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Transient reports whether at least one member failed for a transient reason.
func (e *ChainedCredentialError) Transient() bool {
	for _, f := range e.Failures {
		var authErr *AuthError
		if errors.As(f.Err, &authErr) && authErr.Transient {
			return true
		}
	}
	return false
}

// ServiceError is a classified non-2xx response.
type ServiceError struct {
	StatusCode int
	// ErrorCode is the service-defined code, empty when the response carried none.
	ErrorCode string
	Message   string
	RawBody   []byte
	Header    http.Header
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("service responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.ErrorCode != "" {
		msg += fmt.Sprintf(" (code: %s)", e.ErrorCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Kind classifies the error by status range. Statuses outside 400-599
// are KindUnknown.
func (e *ServiceError) Kind() Kind {
	switch {
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return KindClient
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return KindServer
	}
	return KindUnknown
}

// ParseError means a successful response body did not match the expected shape.
type ParseError struct {
	StatusCode int
	Type       string
	Body       []byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to decode %d response into %s: %v", e.StatusCode, e.Type, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		cfgErr   ConfigurationError
		tErr     *TransportError
		authErr  *AuthError
		chainErr *ChainedCredentialError
		svcErr   *ServiceError
		parseErr *ParseError
	)

	// A chain unwraps to every member failure, so it is matched before the
	// member kinds it may contain.
	switch {
	case errors.As(err, &chainErr), errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &svcErr):
		return svcErr.Kind()
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &tErr):
		return KindTransport
	}
	return KindUnknown
}

// IsRetryable reports whether err is a candidate for automatic retry.
// Only connectivity failures and transient credential failures qualify;
// service, parse, and configuration errors are returned to the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var chainErr *ChainedCredentialError
	if errors.As(err, &chainErr) {
		return chainErr.Transient()
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Transient
	}

	var cfgErr ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}

	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsTransientNetwork reports whether err looks like a connectivity fault.
func IsTransientNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsNotFound reports whether err is a 404 ServiceError.
func IsNotFound(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status preserved in err, if any.
func StatusCode(err error) (int, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode, true
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.StatusCode, true
	}
	return 0, false
}

// ErrorCode returns the service-defined error code preserved in err.
func ErrorCode(err error) (string, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.ErrorCode != "" {
		return svcErr.ErrorCode, true
	}
	return "", false
}
