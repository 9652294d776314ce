package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// Handshake limits per client IP on the websocket routes.
const (
	wsHandshakeRPS   = 5
	wsHandshakeBurst = 10
)

// Pinger is a dependency /healthz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the persistence surface the server needs: the REST repositories
// plus a liveness check. *postgres.Store satisfies it.
type Store interface {
	v1.DataStore
	Pinger
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds the background
// cleanup of the in-memory limiters.
func New(
	ctx context.Context,
	cfg *config.Config,
	store Store,
	tokens middleware.TokenResolver,
	limiter middleware.Allower,
	hub *ws.Hub,
	gatherer prometheus.Gatherer,
) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		},
	}
	s.httpServer.RegisterOnShutdown(hub.Close)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(tokens))
		r.Use(middleware.RateLimit(limiter))

		apiConfig := huma.DefaultConfig("Taskboard API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, store, hub)
	})

	// The websocket handshake authenticates itself from the token query
	// parameter, so only the per-IP limiter guards it here.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, wsHandshakeRPS, wsHandshakeBurst))
		registerWSRoutes(r, hub)
	})

	checks := []healthCheck{{name: "database", pinger: store}}
	// The shared Redis limiter is checked too; the in-process fallback has
	// nothing to reach.
	if p, ok := limiter.(Pinger); ok {
		checks = append(checks, healthCheck{name: "redis", pinger: p})
	}
	router.Get("/healthz", healthHandler(checks))
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

type healthCheck struct {
	name   string
	pinger Pinger
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		for _, c := range checks {
			if err := c.pinger.Ping(r.Context()); err != nil {
				log.Warn().Err(err).Str("dependency", c.name).Msg("healthz: dependency unreachable")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// OriginPatterns turns CORS origins into the host patterns the websocket
// handshake matches against. "*" passes through unchanged.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" || !strings.Contains(o, "://") {
			patterns = append(patterns, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.Warn().Str("origin", o).Msg("server: skipping unparsable origin")
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
