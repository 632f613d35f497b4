package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TheMaster3558/toppy/internal/config"
	"github.com/TheMaster3558/toppy/internal/core"
	apperrors "github.com/TheMaster3558/toppy/internal/errors"
	"github.com/TheMaster3558/toppy/internal/metrics"
	"github.com/TheMaster3558/toppy/internal/server/handlers"
	servermw "github.com/TheMaster3558/toppy/internal/server/middleware"
)

// Options wires a Server to the running bot.
type Options struct {
	Config  *config.Config
	Host    core.Host
	Cache   core.VoteCache
	Version string
	Logger  *zap.Logger
}

// Server receives vote webhooks and serves the operational endpoints.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     *config.Config
	webhook *handlers.Webhook
	health  *handlers.HealthManager
	logger  *zap.Logger
}

// New builds a server. Each server owns its own webhook secrets.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	webhook, err := handlers.NewWebhook(opts.Host, opts.Cache, cfg.Webhook, logger)
	if err != nil {
		return nil, err
	}

	health := handlers.NewHealthManager(opts.Version)
	if opts.Host != nil {
		health.RegisterChecker("host", handlers.HostChecker(opts.Host))
	}
	if opts.Cache != nil {
		health.RegisterChecker("vote_cache", handlers.VoteCacheChecker(opts.Cache))
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	httpServer := &http.Server{
		Handler:      r,
		ReadTimeout:  durationOr(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.Server.IdleTimeout, 120*time.Second),
	}

	s := &Server{
		router:  r,
		cfg:     cfg,
		webhook: webhook,
		health:  health,
		logger:  logger,
		server:  httpServer,
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s, nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
}

// Start listens and serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	metrics.SetServerStartTime(time.Now().Unix())
	s.logger.Info("Starting webhook server", zap.String("addr", ln.Addr().String()))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down webhook server")
	return s.server.Shutdown(ctx)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), durationOr(s.cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Webhook returns the vote handler, including its resolved secrets.
func (s *Server) Webhook() *handlers.Webhook {
	return s.webhook
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
