// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires the HTTP router, the middleware chain and the domain
handlers into a runnable [http.Server].

Architecture:

  - This package is the composition root for the chi router.
  - Every request is authenticated (optionally) and then passes the gate,
    before any handler runs.
  - Only this package and cmd/api import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taibuivan/palm/internal/platform/config"
	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/middleware"
	"github.com/taibuivan/palm/internal/users/access"
	"github.com/taibuivan/palm/internal/users/account"
	"github.com/taibuivan/palm/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Security groups the request-level security collaborators.
type Security struct {
	// Verifier checks session signatures and expiry.
	Verifier middleware.TokenVerifier

	// Resolver applies the revocation list to verified sessions.
	Resolver middleware.ClaimsResolver

	// Policy is the ordered authorization gate.
	Policy *access.Policy

	// Proxies decides whose forwarding headers name the client. Nil trusts no one.
	Proxies *middleware.ProxyTrust
}

// Handlers groups the HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler.
	Readiness http.HandlerFunc

	// Auth handles sign-in, recovery and the gate lookup.
	Auth *auth.Handler

	// Account handles profiles and admin user management.
	Account *account.Handler
}

// # Server Initialization

// NewServer constructs the router with the full middleware chain and
// registers all route groups. ctx bounds the rate limiter's cleanup loop.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, security Security, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientAddress(security.Proxies))
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst).Handler)
	r.Use(middleware.PanicRecovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins(), cfg.Debug))
	r.Use(chimw.CleanPath)
	r.Use(middleware.Authenticate(security.Verifier, security.Resolver))
	r.Use(middleware.Gate(security.Policy))

	// # Infrastructure Endpoints
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// # Application API
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", h.Auth.Routes())
		api.Mount("/me", h.Account.Routes())
		api.Mount("/admin", h.Account.AdminRoutes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
