// Package server exposes the daemon's loopback HTTP API to the browser
// extension shim and the CLI.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http     *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// Router builds the chi router with every route registered.
func Router(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(d.Logger))

	r.Get("/healthz", Healthz(d))

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream is long-lived and must not inherit the request timeout.
		r.Get("/bridge/stream", Stream(d))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/events/tab-updated", TabUpdated(d))
			r.Post("/events/navigation-committed", NavigationCommitted(d))
			r.Post("/events/tab-activated", TabActivated(d))
			r.Post("/events/tab-removed", TabRemoved(d))

			r.Post("/messages", Messages(d))

			r.Get("/settings", GetSettings(d))
			r.Patch("/settings", PatchSettings(d))
			r.Post("/settings/reset-session", ResetSession(d))

			r.Post("/bridge/replies/{id}", Reply(d))
		})
	})

	return r
}

// New builds the HTTP server for addr.
func New(addr string, d Deps) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           Router(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: the bridge stream stays open for the daemon's lifetime.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	// Request contexts end on shutdown so open streams return.
	base, cancel := context.WithCancel(context.Background())
	s.BaseContext = func(net.Listener) context.Context { return base }
	s.RegisterOnShutdown(cancel)
	return &Server{http: s, logger: d.Logger}
}

// Listen binds the listening socket so the bound address is known before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Serve runs the HTTP server (blocks until error or shutdown).
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.Addr()))
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
