package errors

import (
	"context"
	stderrors "errors"
	"math"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/server/middleware"
	"github.com/spacelink/spacelink/internal/tools"
)

// Error codes carried by envelopes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeCancelled          = "CANCELLED"
	CodeTimeout            = "TIMEOUT"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeDataProcessing     = "DATA_PROCESSING_ERROR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeInternal           = "INTERNAL_ERROR"
)

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// Wrap builds an envelope for err keyed to the request ID in ctx. The text
// of err is kept in the envelope context, which is logged but never returned
// to callers.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	if err == nil {
		return envelope
	}
	updated, ctxErr := envelope.WithContext(map[string]interface{}{"cause": err.Error()})
	if ctxErr != nil {
		return envelope
	}
	return updated
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInvalidInput, err, message)
}

// WrapConfigInvalid marks err as a configuration problem.
func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeConfigInvalid, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

// FromGateway maps an error returned by the gateway or the operation facade
// onto an envelope. Gateway messages are already free of credentials.
func FromGateway(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return nil
	}

	var existing *errors.ErrorEnvelope
	if stderrors.As(err, &existing) && existing != nil {
		return existing
	}

	if gerr, ok := gateway.AsError(err); ok {
		return fromGatewayError(ctx, gerr)
	}

	switch {
	case stderrors.Is(err, tools.ErrUnknownTool):
		return withSeverity(Wrap(ctx, CodeNotFound, nil, err.Error()), false)
	case stderrors.Is(err, spaces.ErrInvalidParams), stderrors.Is(err, tools.ErrInvalidArguments):
		return withSeverity(Wrap(ctx, CodeInvalidInput, nil, err.Error()), false)
	case stderrors.Is(err, spaces.ErrEmptySearchResponse):
		return withSeverity(Wrap(ctx, CodeExternalService, nil, err.Error()), false)
	case stderrors.Is(err, context.DeadlineExceeded):
		return withSeverity(Wrap(ctx, CodeTimeout, err, "request deadline exceeded"), false)
	case stderrors.Is(err, context.Canceled):
		return withSeverity(Wrap(ctx, CodeCancelled, err, "request cancelled"), false)
	default:
		return withSeverity(Wrap(ctx, CodeInternal, err, "unexpected error"), true)
	}
}

func fromGatewayError(ctx context.Context, gerr gateway.Error) *errors.ErrorEnvelope {
	var (
		envelope *errors.ErrorEnvelope
		high     bool
		details  = map[string]interface{}{"kind": string(gerr.Kind())}
	)

	switch e := gerr.(type) {
	case *gateway.RateLimitExceeded:
		envelope = Wrap(ctx, CodeRateLimited, nil, e.Error())
		details["category"] = string(e.Category)
		if e.RetryAfter > 0 {
			details["retry_after_seconds"] = int(math.Ceil(e.RetryAfter.Seconds()))
		}
	case *gateway.AuthenticationFailed:
		envelope = Wrap(ctx, CodeUnauthorized, nil, e.Error())
		high = true
	case *gateway.UpstreamError:
		envelope = Wrap(ctx, CodeExternalService, nil, e.Error())
		details["upstream_status"] = e.StatusCode
		if e.StatusCode >= http.StatusInternalServerError {
			high = true
		}
	case *gateway.TransportError:
		code := CodeExternalService
		if e.Timeout {
			code = CodeTimeout
		}
		envelope = Wrap(ctx, code, nil, e.Error())
		details["operation"] = e.Op
		high = true
	case *gateway.DecodeFailure:
		envelope = Wrap(ctx, CodeDataProcessing, nil, e.Error())
	default:
		envelope = Wrap(ctx, CodeInternal, nil, gerr.Error())
		high = true
	}

	envelope = envelope.WithDetails(details)
	return withSeverity(envelope, high)
}

func withSeverity(envelope *errors.ErrorEnvelope, high bool) *errors.ErrorEnvelope {
	severity := errors.SeverityMedium
	if high {
		severity = errors.SeverityHigh
	}
	updated, err := envelope.WithSeverity(severity)
	if err != nil {
		return envelope
	}
	return updated
}

// correlationID returns the request ID carried by ctx, or a fresh UUID for
// errors raised outside a request.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}
	return FromGateway(context.Background(), err)
}

var statusByCode = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeCancelled:          http.StatusRequestTimeout,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeExternalService:    http.StatusBadGateway,
	CodeDataProcessing:     http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeConfigInvalid:      http.StatusInternalServerError,
	CodeInternal:           http.StatusInternalServerError,
}

// HTTPStatusFromEnvelope resolves the HTTP status for an envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status for an error code. Unknown
// codes map to 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
