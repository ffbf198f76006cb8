package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	errwrap "github.com/spacelink/spacelink/internal/errors"
	"github.com/spacelink/spacelink/internal/observability"
	"github.com/spacelink/spacelink/internal/server"
	"github.com/spacelink/spacelink/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// credentialHealthChecker reports whether the upstream token is configured.
// It never calls the upstream, so probes do not spend rate budget.
type credentialHealthChecker struct {
	cfg *config.Config
}

func (c credentialHealthChecker) CheckHealth(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return errwrap.NewConfigInvalidError(err.Error())
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the tools over HTTP",
	Long: `Start the HTTP server exposing every tool at /tools/{name}.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply changes)

Set SPACELINK_ADMIN_TOKEN to enable POST /admin/signal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := observability.InitServerLogger(observability.ServerLogOptions{
			Service:     config.AppName,
			Level:       viper.GetString("logging.level"),
			Profile:     viper.GetString("logging.profile"),
			Namespace:   config.AppName,
			Environment: viper.GetString("logging.environment"),
		}); err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}
		logger := observability.ServerLogger

		sess, err := openSession(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer sess.Close(cmd.Context())
		cfg := sess.cfg

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		registry, err := sess.registry()
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "tool registry initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("upstream", sess.gateway.BaseURL()),
			zap.Bool("cache", sess.client.Cache != nil),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		handlers.InitHealthManager(versionInfo.Version)
		handlers.SetAppName(config.AppName)
		handlers.SetUpstreamInfo(sess.gateway.BaseURL(), len(registry.List()))
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("credentials", credentialHealthChecker{cfg: cfg})
		// Tools keep working without metrics or the cache store.
		if cfg.Metrics.Enabled {
			hm.RegisterOptionalChecker("telemetry", telemetryHealthChecker{})
		}
		if sess.store != nil {
			hm.RegisterOptionalChecker("store", sess.store)
		}

		srv := server.New(server.Options{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    cfg.Server.IdleTimeout,
			Registry:       registry,
			Tracker:        sess.tracker,
			AdminToken:     os.Getenv(config.EnvPrefix + "_ADMIN_TOKEN"),
			DisableProbes:  !cfg.Health.Enabled,
			DisableMetrics: !cfg.Metrics.Enabled,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the HTTP server stops before the logger flushes.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			sess.Close(ctx)
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: re-reading config file")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			logger.Info("Configuration file re-read; restart to apply changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
