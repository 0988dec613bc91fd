package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Error kinds reported by Kind.
const (
	KindValidation = "validation"
	KindConnection = "connection"
	KindRateLimit  = "rate_limit"
	KindProvider   = "provider"
	KindParsing    = "parsing"
	KindAuth       = "invalid_credentials"
	KindUnknown    = "unknown"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects the API key (HTTP 401).
	ErrInvalidCredentials = errors.New("invalid provider credentials")
	// ErrUnsupportedModel is returned when a request names a model the adapter does not serve.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// ValidationError reports a malformed request or input. Never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConnectionError reports a network failure or timeout. Retried.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RateLimitError reports a local quota or provider 429. Retried after RetryAfter.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "rate limit exceeded"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Provider, msg, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

// ProviderError reports a non-2xx provider response other than 401/429.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500] + "...[truncated]"
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether the status is transient.
func (e *ProviderError) Retryable() bool {
	switch e.StatusCode {
	case 408, 409, 425, 529:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// ParsingError reports provider output that could not be mapped back to
// sections. Never retried.
type ParsingError struct {
	Message     string
	TextSize    int
	AnchorCount int
	Missing     []string
}

func (e *ParsingError) Error() string {
	msg := fmt.Sprintf("parsing failed: %s (text size %d, anchors found %d", e.Message, e.TextSize, e.AnchorCount)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(", missing %d", len(e.Missing))
	}
	return msg + ")"
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var (
		connErr  *ConnectionError
		rateErr  *RateLimitError
		provErr  *ProviderError
		netErr   net.Error
		validErr *ValidationError
		parseErr *ParsingError
	)
	switch {
	case errors.As(err, &validErr), errors.As(err, &parseErr):
		return false
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnsupportedModel):
		return false
	case errors.As(err, &connErr), errors.As(err, &rateErr):
		return true
	case errors.As(err, &provErr):
		return provErr.Retryable()
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return true
	}
	return false
}

// RetryAfter returns the provider-supplied backoff hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}

// Kind classifies err for metrics and user-facing messages.
func Kind(err error) string {
	var (
		connErr  *ConnectionError
		rateErr  *RateLimitError
		provErr  *ProviderError
		validErr *ValidationError
		parseErr *ParsingError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return KindAuth
	case errors.As(err, &validErr), errors.Is(err, ErrUnsupportedModel):
		return KindValidation
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &connErr), errors.Is(err, context.DeadlineExceeded):
		return KindConnection
	case errors.As(err, &provErr):
		return KindProvider
	case errors.As(err, &parseErr):
		return KindParsing
	default:
		return KindUnknown
	}
}
