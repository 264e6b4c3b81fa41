package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/licensegate/internal/api/handler"
	mw "github.com/edvin/licensegate/internal/api/middleware"
	"github.com/edvin/licensegate/internal/config"
)

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	cfg     *config.Config
	license handler.LicenseService
	keys    mw.KeyLookup
	checks  map[string]ReadyCheck
}

// NewServer builds the router. keys is only consulted in api_key mode and may
// be nil otherwise.
func NewServer(logger zerolog.Logger, cfg *config.Config, svc handler.LicenseService, keys mw.KeyLookup, checks map[string]ReadyCheck) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		cfg:     cfg,
		license: svc,
		keys:    keys,
		checks:  checks,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint, unless served on its own listener
	if s.cfg.MetricsListenAddr == "" {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/v1", func(r chi.Router) {
		if s.cfg.AuthMode == config.AuthModeAPIKey {
			r.Use(mw.Auth(s.keys))
		}

		lic := handler.NewLicense(s.license)
		r.Post("/licenses", lic.Provision)
		r.Post("/licenses/offline-activation", lic.OfflineActivation)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			// Details stay in the log; they may name internal resources.
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			checks[name] = "unavailable"
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
