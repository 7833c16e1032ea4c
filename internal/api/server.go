package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// Server wraps the HTTP server with its router.
type Server struct {
	router *chi.Mux
	srv    *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(cfg *config.Config, h *Handlers, hc *HealthChecker) *Server {
	router := SetupRoutes(h, hc)
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:    addr,
			Handler: router,
			// Document upload and assistant streaming hold connections
			// open well past typical API latencies.
			ReadTimeout:  2 * time.Minute,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  time.Minute,
		},
	}
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	logger.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
