package response

import (
	"strings"

	"github.com/tidwall/gjson"

	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/transport"
)

// ErrorCodeHeader carries the service error code when the body does not.
const ErrorCodeHeader = "x-ms-error-code"

const maxMessageLen = 512

// Classify returns nil for a 2xx reply and a *errors.ServiceError otherwise.
// The error code is looked up in error.code, then a top-level code, then
// the x-ms-error-code header; it is empty when none is present.
func Classify(resp *transport.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	code, message := errorDetails(resp.Body)
	if code == "" {
		code = resp.Header.Get(ErrorCodeHeader)
	}

	return &scerrors.ServiceError{
		StatusCode: resp.StatusCode,
		ErrorCode:  code,
		Message:    message,
		RawBody:    resp.Body,
		Header:     resp.Header.Clone(),
	}
}

func errorDetails(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	if !gjson.ValidBytes(body) {
		return "", truncate(strings.TrimSpace(string(body)))
	}

	root := gjson.ParseBytes(body)
	switch e := root.Get("error"); {
	case e.IsObject():
		code = e.Get("code").String()
		message = e.Get("message").String()
	case e.Type == gjson.String:
		// OAuth-style {"error": "...", "error_description": "..."}
		code = e.String()
		message = root.Get("error_description").String()
	}

	if code == "" {
		code = root.Get("code").String()
	}
	if message == "" {
		message = root.Get("message").String()
	}
	return code, truncate(message)
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
