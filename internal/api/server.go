package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/engagement-agent/internal/config"
)

// Server is the engagement API over net/http.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the router and an http.Server bound to cfg's address.
// health may be nil.
func NewServer(cfg config.ServerConfig, handlers *Handlers, health *HealthChecker) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              cfg.Addr(),
		Handler:           SetupRoutes(handlers, health, cfg.AllowedOrigins),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}}
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start blocks serving requests. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
