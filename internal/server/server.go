// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/buildcfg/internal/auth"
	"github.com/pendergraft/buildcfg/internal/config"
	"github.com/pendergraft/buildcfg/internal/middleware/logging"
	"github.com/pendergraft/buildcfg/internal/middleware/ratelimit"
	"github.com/pendergraft/buildcfg/internal/middleware/realip"
	"github.com/pendergraft/buildcfg/internal/middleware/security"
	"github.com/pendergraft/buildcfg/internal/observability/metrics"
	"github.com/pendergraft/buildcfg/internal/project"
	snapshotsDomain "github.com/pendergraft/buildcfg/internal/snapshots/domain"
	snapshotsTransport "github.com/pendergraft/buildcfg/internal/snapshots/transport"
	"github.com/pendergraft/buildcfg/internal/storage"
	"github.com/pendergraft/buildcfg/internal/validation"
)

// readyTimeout bounds the storage ping behind /readyz.
const readyTimeout = 2 * time.Second

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	snapshotsSvc snapshotsTransport.Service
}

// New creates a new server. Background work started for it, such as the
// rate limiter's sweeper, stops when ctx is done.
func New(ctx context.Context, cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	svc := snapshotsDomain.NewService(store)
	svc = snapshotsDomain.MetricsMiddleware()(svc)
	s.snapshotsSvc = snapshotsDomain.LoggingMiddleware(logger)(svc)

	if err := s.setupMiddleware(ctx); err != nil {
		return nil, err
	}
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(ctx context.Context) error {
	// Client address first; the filter, limiter and logs all use it.
	resolveIP, err := realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("configuring proxies: %w", err)
	}
	s.router.Use(resolveIP)

	s.router.Use(security.Middleware(security.Config{
		FilterEnabled: s.cfg.Security.FilterEnabled,
		MaxBodySizeMB: s.cfg.Security.MaxBodySizeMB,
	}))

	s.router.Use(ratelimit.Middleware(ctx, ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors)
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	snapshotsHandler := snapshotsTransport.NewHandler(s.snapshotsSvc)

	// Writes need a key when auth is on. Otherwise a key, if sent, still
	// identifies the publisher so project ownership is recorded.
	identify := func(r chi.Router) {
		if s.cfg.Auth.Enabled() {
			r.Use(auth.Middleware(s.store, s.logger, snapshotsTransport.WriteError))
			return
		}
		r.Use(auth.OptionalMiddleware(s.store))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/compilers", s.handleCompilers)
		r.Get("/plugins", s.handlePlugins)
		r.Post("/validate", snapshotsHandler.HandleValidate)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.store, s.logger, snapshotsTransport.WriteError))
			r.Get("/auth/whoami", s.handleWhoami)
		})

		r.Route("/snapshots", func(r chi.Router) {
			snapshotsHandler.RegisterReadRoutes(r)

			r.Group(func(r chi.Router) {
				identify(r)
				snapshotsHandler.RegisterWriteRoutes(r)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the snapshot store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompilers(w http.ResponseWriter, r *http.Request) {
	versions := validation.SupportedCompilerVersions()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":    versions,
		"latest":  validation.ResolveLatest(versions),
		"default": project.DefaultSolcVersion,
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":    project.KnownPlugins(),
		"default": []string{project.CoveragePlugin},
	})
}

// handleWhoami names the API key the request carries. It answers 401 for a
// missing or revoked key whether or not writes require one.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	key := auth.GetAPIKeyFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"id":   key.ID,
		"name": key.Name,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
