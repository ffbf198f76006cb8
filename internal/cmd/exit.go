package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/core/gateway"
)

// ExitCodeFor maps a command error onto a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	switch {
	case err == nil:
		return foundry.ExitCode(0)
	case errors.Is(err, errConfig):
		return foundry.ExitConfigInvalid
	case errors.Is(err, context.Canceled):
		return foundry.ExitFailure
	}

	if _, ok := gateway.AsError(err); ok {
		return foundry.ExitExternalServiceUnavailable
	}
	return foundry.ExitFailure
}

// exitHint suggests the next step for failures a user can fix.
func exitHint(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, errConfig) {
		return "run '" + config.AppName + " doctor' to inspect the configuration"
	}

	gerr, ok := gateway.AsError(err)
	if !ok {
		return ""
	}
	switch e := gerr.(type) {
	case *gateway.AuthenticationFailed:
		return "the upstream rejected the token; check " + config.EnvPrefix + "_API_TOKEN or api.token"
	case *gateway.RateLimitExceeded:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("the %s budget is exhausted upstream; retry in %s", e.Category, e.RetryAfter)
		}
		return fmt.Sprintf("the %s budget is exhausted upstream; retry after the window resets", e.Category)
	case *gateway.TransportError:
		return "check network access to api.base_url"
	}
	return ""
}

// ExitWithCode logs err with exit code metadata and exits. A nil logger
// writes a plain report to stderr instead.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	code := int(exitCode)
	var name, category, description string
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		code = info.Code
		name = info.Name
		category = info.Category
		description = info.Description
	}

	if logger == nil {
		writeExitReport(os.Stderr, msg, err, code, name, description)
		os.Exit(code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.String("exit_name", name),
		zap.String("exit_category", category),
	}
	var envelope *gferrors.ErrorEnvelope
	if errors.As(err, &envelope) && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
	}
	if hint := exitHint(err); hint != "" {
		fields = append(fields, zap.String("hint", hint))
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	os.Exit(code)
}

// ExitWithCodeStderr exits without a logger, for failures before logging is
// set up or after it is torn down.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func writeExitReport(w io.Writer, msg string, err error, code int, name, description string) {
	var envelope *gferrors.ErrorEnvelope
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(w, "FATAL: %s\n", msg)
	case errors.As(err, &envelope) && envelope != nil:
		_, _ = fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if envelope.CorrelationID != "" {
			_, _ = fmt.Fprintf(w, "Correlation: %s\n", envelope.CorrelationID)
		}
	default:
		_, _ = fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}

	if hint := exitHint(err); hint != "" {
		_, _ = fmt.Fprintf(w, "Hint: %s\n", hint)
	}

	if name == "" {
		_, _ = fmt.Fprintf(w, "Exit Code: %d\n", code)
		return
	}
	_, _ = fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", code, name, description)
}
