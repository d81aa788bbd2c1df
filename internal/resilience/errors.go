package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind is the fixed classification every terminal call failure maps to.
// Callers branch on the kind, never on raw status codes.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindServerError  Kind = "server_error"
	KindUnknown      Kind = "unknown"
)

// Retryable reports whether calls failing with this kind are safe to retry.
// Unknown is deliberately non-retryable to avoid loops on unclassified
// failures.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindNetwork, KindServerError:
		return true
	default:
		return false
	}
}

// CallError is the terminal failure of one logical outbound call. It
// carries the classification kind, the HTTP status (if any), and the
// correlation ID shared by every retry of the call.
type CallError struct {
	Kind          Kind
	StatusCode    int
	CorrelationID string
	Message       string
	Err           error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain, defaulting to
// unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if kind, ok := classifyTransport(err); ok {
		return kind
	}
	return KindUnknown
}

// IsRetryable reports whether the error (or any error in its chain) is
// safe to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err).Retryable()
}

// ClassifyStatus maps an HTTP status code plus response body to a Kind.
// Ambiguous codes (412, 422, 500, 503) are disambiguated by body content.
func ClassifyStatus(statusCode int, body []byte) Kind {
	lower := strings.ToLower(string(body))

	switch statusCode {
	case 400:
		return KindValidation
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 408:
		// The server timed out reading the request, not the reverse;
		// resending the same request cannot help. Keep it out of the
		// retryable timeout kind.
		return KindValidation
	case 409:
		return KindConflict
	case 412:
		if containsAny(lower, "invalid", "validation") {
			return KindValidation
		}
		return KindConflict
	case 422:
		if containsAny(lower, "conflict", "duplicate", "already exists") {
			return KindConflict
		}
		return KindValidation
	case 429:
		return KindRateLimited
	case 500:
		if containsAny(lower, "timeout", "timed out", "deadline") {
			return KindTimeout
		}
		if containsAny(lower, "rate limit", "too many requests") {
			return KindRateLimited
		}
		return KindServerError
	case 502, 504:
		return KindServerError
	case 503:
		if containsAny(lower, "rate limit", "quota") {
			return KindRateLimited
		}
		return KindServerError
	}

	switch {
	case statusCode >= 500:
		return KindServerError
	case statusCode >= 400:
		// Remaining 4xx codes are caller mistakes; never retried.
		return KindValidation
	default:
		return KindUnknown
	}
}

// classifyTransport maps transport-level errors (no HTTP response) to a
// Kind.
func classifyTransport(err error) (Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindNetwork, true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return KindNetwork, true
		}
	}

	return KindUnknown, false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
