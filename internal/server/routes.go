package server

import (
	"context"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
	"github.com/lsk7209/0-nkey-sub001/internal/server/handlers"
	servermw "github.com/lsk7209/0-nkey-sub001/internal/server/middleware"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Get("/metrics", MetricsHandler)
	s.router.Method("GET", "/metrics/throttle",
		observability.ThrottleHandler(observability.NewThrottleCollector(s.namespace, s.throttleSnapshots)))

	s.registerDebugRoutes()
	s.registerAdminEndpoint()
}

func (s *Server) throttleSnapshots(ctx context.Context) ([]core.ThrottleSnapshot, error) {
	if s.state == nil {
		return nil, nil
	}
	return s.state.ListThrottleStates(ctx, store.ThrottleQuery{All: true})
}

// registerDebugRoutes mounts read-only state views. They stay unmounted
// without an admin token.
func (s *Server) registerDebugRoutes() {
	logger := observability.ServerLogger
	if s.adminToken == "" {
		if logger != nil {
			logger.Debug("Debug routes disabled (no admin token configured)")
		}
		return
	}

	s.router.Route("/debug", func(r chi.Router) {
		r.Use(servermw.BearerAuth(s.adminToken))
		r.Get("/throttle", s.listThrottleHandler)
		r.Get("/throttle/{pool}", s.getThrottleHandler)
		r.Get("/runs", s.listRunsHandler)
	})

	if logger != nil {
		logger.Info("Debug routes enabled", zap.String("path", "/debug"), zap.String("auth", "bearer token"))
	}
}

func (s *Server) registerAdminEndpoint() {
	if s.adminToken == "" {
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.adminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}
