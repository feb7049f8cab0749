package client

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned before any network call when no API
	// key is configured.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential is returned when the server rejects the API key
	// with 401. Callers should prompt for a new key rather than retry.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrEmptyResponse is returned when the feed call succeeds but carries no
	// posts array.
	ErrEmptyResponse = errors.New("empty response")
)

// HTTPError is a non-2xx response other than 401.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error (status %d)", e.Status)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// NetworkError wraps a transport failure such as DNS resolution, a refused
// connection, or a timeout.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}
