package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by `serve`
	ServerLogger *logging.Logger
)

// ServerLogOptions configures the `serve` logger.
type ServerLogOptions struct {
	Service     string
	Level       string
	Profile     string // "structured" (default) or "simple"
	Namespace   string
	Environment string
}

// InitCLILogger initializes the CLI logger with SIMPLE profile.
func InitCLILogger(serviceName string, verbose bool) error {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return fmt.Errorf("init cli logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
	return nil
}

// InitServerLogger builds the server logger. The structured profile emits
// JSON with correlation IDs; the simple profile writes console lines for
// interactive runs.
func InitServerLogger(opts ServerLogOptions) error {
	logger, err := logging.New(serverLoggerConfig(opts))
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}

	ServerLogger = logger
	return nil
}

func serverLoggerConfig(opts ServerLogOptions) *logging.LoggerConfig {
	env := opts.Environment
	if env == "" {
		env = "production"
	}
	staticFields := make(map[string]any)
	if opts.Namespace != "" {
		staticFields["namespace"] = opts.Namespace
	}

	if strings.EqualFold(strings.TrimSpace(opts.Profile), "simple") {
		return &logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: parseLogLevel(opts.Level),
			Service:      opts.Service,
			Environment:  env,
			StaticFields: staticFields,
			Sinks:        []logging.SinkConfig{stderrSink("console")},
		}
	}

	return &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(opts.Level),
		Service:      opts.Service,
		Environment:  env,
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks:            []logging.SinkConfig{stderrSink("json")},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:   "console",
		Format: format,
		Console: &logging.ConsoleSinkConfig{
			Stream:   "stderr",
			Colorize: false,
		},
	}
}

// Logger returns the server logger when running as a service and the CLI
// logger otherwise. It may be nil before initialization.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

func parseLogLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
