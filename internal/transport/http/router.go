package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muniquery/internal/analysis"
	"muniquery/internal/config"
	"muniquery/internal/middleware"
)

// NewRouter assembles the API router with the standard middleware
// chain.
func NewRouter(service *analysis.Service, cfg config.ServerConfig, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Handler)

	r.Mount("/api", NewAnalysisHandler(service, logger).Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthz(service))

	return r
}

// healthz reports process liveness and the data path in use.
func healthz(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if service.Live() {
			w.Write([]byte(`{"status":"ok","source":"live"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","source":"fallback"}`))
	}
}
