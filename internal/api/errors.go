package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for remote calls. Credential problems resolve to
// ErrAuthorizationFailure and are handled centrally by the gateway's
// unauthorized hook; everything else returns typed to the caller and is
// never retried automatically.
var (
	ErrAuthorizationFailure = errors.New("authorization failure")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failure")
	ErrTransport            = errors.New("transport failure")
)

// StatusError carries the HTTP status and server message of a failed call.
// It unwraps to the matching taxonomy sentinel so callers can errors.Is.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuthorizationFailure
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrTransport
	}
}

// errorBody is the JSON error envelope the server emits.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}
