package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/spacelink/spacelink/internal/core"
)

// ErrBodyTooLarge is wrapped in a DecodeFailure when a 2xx body is larger
// than the gateway reads. Such a body is never masked as a synthetic success.
var ErrBodyTooLarge = errors.New("response body too large")

// ErrorKind tags each member of the gateway error set.
type ErrorKind string

const (
	KindRateLimitExceeded    ErrorKind = "rate_limit_exceeded"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindUpstream             ErrorKind = "upstream_error"
	KindTransport            ErrorKind = "transport_error"
	KindDecode               ErrorKind = "decode_failure"
)

// Error is the closed set of failures returned by Dispatch. Only types in
// this package implement it.
//
// Messages never contain the bearer token.
type Error interface {
	error
	Kind() ErrorKind
	gatewayError()
}

// RateLimitExceeded is returned when the upstream answers 429.
type RateLimitExceeded struct {
	Category   core.RateCategory
	RetryAfter time.Duration
	Details    string
}

func (e *RateLimitExceeded) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate limit exceeded for %s requests, retry in %s", e.Category, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("upstream rate limit exceeded for %s requests", e.Category)
}

func (e *RateLimitExceeded) Kind() ErrorKind { return KindRateLimitExceeded }
func (e *RateLimitExceeded) gatewayError()   {}

// AuthenticationFailed is returned when the upstream answers 401.
type AuthenticationFailed struct {
	Details string
}

func (e *AuthenticationFailed) Error() string {
	return "authentication failed: check the configured API token"
}

func (e *AuthenticationFailed) Kind() ErrorKind { return KindAuthenticationFailed }
func (e *AuthenticationFailed) gatewayError()   {}

// UpstreamError covers every other non-2xx status.
type UpstreamError struct {
	StatusCode int
	Details    string
}

func (e *UpstreamError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("upstream request failed: status %d: %s", e.StatusCode, e.Details)
	}
	return fmt.Sprintf("upstream request failed: status %d", e.StatusCode)
}

func (e *UpstreamError) Kind() ErrorKind { return KindUpstream }
func (e *UpstreamError) gatewayError()   {}

// TransportError reports that no HTTP response was received.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	reason := "network failure"
	if e.Timeout {
		reason = "timed out"
	}
	if e.Err == nil {
		return fmt.Sprintf("transport failure during %s: %s", e.Op, reason)
	}
	return fmt.Sprintf("transport failure during %s: %s: %v", e.Op, reason, e.Err)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Kind() ErrorKind { return KindTransport }
func (e *TransportError) gatewayError()   {}

// DecodeFailure is returned in strict decode mode, for oversized bodies, or
// when a caller cannot map a payload onto the shape it expects.
type DecodeFailure struct {
	Err     error
	Details string
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode upstream response: %v", e.Err)
}

func (e *DecodeFailure) Unwrap() error   { return e.Err }
func (e *DecodeFailure) Kind() ErrorKind { return KindDecode }
func (e *DecodeFailure) gatewayError()   {}

// AsError extracts a gateway error from err.
func AsError(err error) (Error, bool) {
	var gerr Error
	if errors.As(err, &gerr) && gerr != nil {
		return gerr, true
	}
	return nil, false
}

// KindOf returns the error kind, or "" for errors outside the gateway set.
func KindOf(err error) ErrorKind {
	if gerr, ok := AsError(err); ok {
		return gerr.Kind()
	}
	return ""
}
