package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/observability"
	"github.com/spacelink/spacelink/internal/server/handlers"
)

const (
	adminSignalPath = "/admin/signal"
	adminRatePerMin = 10
	adminRateBurst  = 5
)

func (s *Server) registerRoutes() {
	if !s.opts.DisableProbes {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)
	if !s.opts.DisableMetrics {
		s.router.Get("/metrics", MetricsHandler)
	}

	toolsHandler := handlers.NewToolsHandler(s.opts.Registry)
	s.router.Route("/tools", func(r chi.Router) {
		r.Get("/", toolsHandler.List)
		r.Get("/{name}", toolsHandler.Describe)
		r.Post("/{name}", toolsHandler.Call)
	})
	s.router.Get("/ratelimits", handlers.RateLimitHandler(s.opts.Tracker))

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes gofulmen's signal handler so an operator can
// trigger a graceful shutdown. It stays off without an admin token.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled", zap.String("enable_with", "SPACELINK_ADMIN_TOKEN"))
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: adminRatePerMin,
		RateBurst: adminRateBurst,
	})
	s.router.Post(adminSignalPath, handler.ServeHTTP)

	if logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep this listener off public networks",
			zap.String("path", adminSignalPath),
			zap.Int("rate_per_min", adminRatePerMin),
			zap.Int("burst", adminRateBurst))
	}
}
