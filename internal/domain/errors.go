package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport signals a non-success status from the brainmaps service.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedStream signals a truncated or misaligned binary mesh stream.
	ErrMalformedStream = errors.New("malformed mesh stream")
	// ErrNoFragments signals that an object has no mesh fragments.
	ErrNoFragments = errors.New("no fragments found")
	// ErrUnexpectedResponse signals a response body missing expected fields.
	ErrUnexpectedResponse = errors.New("unexpected response shape")
	// ErrVolumeRequired signals a call made without a volume ID.
	ErrVolumeRequired = errors.New("volume id required")
)

// StatusError wraps ErrTransport with the HTTP status code and response body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrTransport.Error(), e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrTransport.Error(), e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// NewStatusError creates a transport error for a non-success HTTP status.
func NewStatusError(code int, body string) error {
	return &StatusError{Code: code, Body: body}
}
