// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/emadnahed/linkguard/internal/config"
	"github.com/emadnahed/linkguard/internal/handlers"
	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/middleware"
	"github.com/emadnahed/linkguard/internal/services"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// Dependencies are the services the HTTP surface calls into.
type Dependencies struct {
	URLService      services.URLService
	RedirectService services.RedirectService
	Limiter         middleware.RateChecker
	// Checks are run by /ready, keyed by name.
	Checks map[string]handlers.CheckFunc
}

// Server represents the HTTP server.
type Server struct {
	cfg             *config.Config
	log             *logger.Logger
	httpServer      *http.Server
	handler         http.Handler
	healthHandler   *handlers.HealthHandler
	urlHandler      *handlers.URLHandler
	redirectHandler *handlers.RedirectHandler
	limiter         middleware.RateChecker
	listener        net.Listener
	running         bool
	mu              sync.RWMutex
}

// New creates a new Server instance.
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) *Server {
	s := &Server{
		cfg:             cfg,
		log:             log,
		healthHandler:   handlers.NewHealthHandler(),
		urlHandler:      handlers.NewURLHandler(deps.URLService, log),
		redirectHandler: handlers.NewRedirectHandler(deps.RedirectService, log),
		limiter:         deps.Limiter,
	}
	for name, check := range deps.Checks {
		s.healthHandler.AddCheck(name, check)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = s.buildMiddlewareChain(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain wraps every route. Rate limiting is not part of it;
// it only guards POST /shorten.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	policy := middleware.NewProxyPolicy(s.cfg.Rate.TrustProxy, s.cfg.Rate.TrustedProxies)

	return middleware.New(
		middleware.Recover(s.log),
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(policy),
		middleware.AccessLog(s.log),
	).Then(handler)
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	shorten := http.Handler(http.HandlerFunc(s.urlHandler.Shorten))
	if s.limiter != nil {
		shorten = middleware.New(middleware.RateLimit(s.limiter, s.log)).Then(shorten)
		s.log.Info("rate limiting enabled",
			"requests", s.cfg.Rate.Requests,
			"window", s.cfg.Rate.Window.String(),
		)
	}
	mux.Handle("POST /shorten", shorten)

	mux.HandleFunc("GET /stats/{code}", s.urlHandler.Stats)

	// More specific patterns above win over this one.
	mux.HandleFunc("GET /{code}", s.redirectHandler.Redirect)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err)
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}
