package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// RateLimitError means the backend asked us to slow down
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ConnectionError means the backend could not be reached or was briefly unavailable
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// APIError is any other backend failure. It is never retried.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error: %s", e.Provider, e.Message)
}

// IsRateLimit reports whether err is a rate limit error
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsConnection reports whether err is a connection error
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// classifyStatus maps an HTTP status to the error taxonomy
func classifyStatus(provider string, status int, message string) error {
	apiErr := &APIError{Provider: provider, StatusCode: status, Message: message}
	switch {
	case status == 429:
		return &RateLimitError{Provider: provider, Err: apiErr}
	case status >= 500:
		return &ConnectionError{Provider: provider, Err: apiErr}
	default:
		return apiErr
	}
}

// classifyTransport wraps network-level failures as connection errors
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return &ConnectionError{Provider: provider, Err: err}
	}
	return &APIError{Provider: provider, Message: err.Error()}
}
