package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/metrics"
	"github.com/TheMaster3558/toppy/internal/server/handlers"
	servermw "github.com/TheMaster3558/toppy/internal/server/middleware"
)

// AdminTokenEnv enables POST /admin/signal when set.
const AdminTokenEnv = config.EnvPrefix + "ADMIN_TOKEN"

func (s *Server) registerRoutes() {
	if s.cfg.Health.Enabled {
		s.router.Get("/health", s.health.HealthHandler)
		s.router.Get("/health/live", s.health.LivenessHandler)
		s.router.Get("/health/ready", s.health.ReadinessHandler)
		s.router.Get("/health/startup", s.health.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)

	if s.cfg.Metrics.Enabled {
		s.router.Method("GET", "/metrics", metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		r.Use(servermw.Throttle(s.cfg.Webhook.ThrottleRate, s.cfg.Webhook.ThrottleBurst))
		r.Post("/topgg", s.webhook.TopGG)
		r.Post("/dbl", s.webhook.DiscordBotList)
		r.Post("/dbgg", s.webhook.DiscordBotsGG)
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal handler so operators can
// trigger a reload or shutdown over HTTP.
func (s *Server) registerAdminEndpoint() {
	adminToken := os.Getenv(AdminTokenEnv)
	if adminToken == "" {
		s.logger.Debug("Admin signal endpoint disabled (no " + AdminTokenEnv + " set)")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	s.logger.Info("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.String("rate_limit", "10/min, burst 5"))
}
