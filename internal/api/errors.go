package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a response the server answered with status >= 400.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Message, body)
}

// IsRetryable is true for server errors and rate limiting.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError means the server could not be reached or did not answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "HTTP request failed: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed. Errors raised
// before the request left (encoding, token lookup) and cancellations never are.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}
