package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmetrics "govdash/internal/platform/metrics"
	"govdash/pkg/domain"
	"govdash/pkg/platform/httputil"
	authmw "govdash/pkg/platform/middleware/auth"
	"govdash/pkg/platform/middleware/metadata"
	"govdash/pkg/platform/middleware/requesttime"
	"govdash/pkg/platform/middleware/servicekey"
)

// registrar is a module handler that mounts its own routes.
type registrar interface {
	Register(r chi.Router)
}

// check probes one backing service for readiness.
type check func(ctx context.Context) error

const checkTimeout = 2 * time.Second

type routerConfig struct {
	serviceKeyHash []byte
	serviceID      domain.ActorID
	tokens         authmw.TokenValidator
	metrics        *httpmetrics.Metrics
	logger         *slog.Logger
	checks         map[string]check
	handlers       []registrar
}

// newRouter resolves the caller identity once per request (service key first,
// then bearer token) and mounts every module under it.
func newRouter(cfg routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if cfg.metrics != nil {
		r.Use(cfg.metrics.Middleware)
	}
	r.Use(servicekey.Identify(cfg.serviceKeyHash, cfg.serviceID, cfg.logger))
	r.Use(authmw.Identify(cfg.tokens, cfg.logger))

	r.Get("/health", health(cfg.checks, cfg.logger))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range cfg.handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// health reports 503 when any configured backend fails its probe.
func health(checks map[string]check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, probe := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := probe(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
