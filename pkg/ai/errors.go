package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the upstream HTTP status so callers can classify failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ai api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai api error (status %d)", e.StatusCode)
}

// IsRetryable reports whether err signals a transient upstream condition:
// rate limiting or a server-side fault. Everything else, including client
// errors and local failures, is not retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// IsAuthError reports whether err signals a credential or permission problem
// with the upstream service, so operators can tell "bad response" from
// "cannot reach service".
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
