package client

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSessionExpired is returned when the access token could not be
	// refreshed. The local session has already been cleared; the user
	// must log in again.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthorized is returned when a request is still rejected
	// with a 401 after its single post-refresh retry.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the backend, carrying whatever
// the error envelope contained. Error bodies are best-effort: Status
// and Message stay empty when the body is not the expected JSON.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// IsAuthError reports whether err is a terminal authentication
// failure: a failed refresh or a 401 that survived its retry. Callers
// are expected to route the user to an unauthenticated entry point.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnauthorized)
}
