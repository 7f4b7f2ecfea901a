package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig configures the HTTP surface
type RouterConfig struct {
	AuthToken string                          // Empty disables bearer auth
	Gatherer  prometheus.Gatherer             // nil uses the default registry
	Ready     func(ctx context.Context) error // nil reports ready
	Logger    *slog.Logger
}

// NewRouter wires every endpoint. Health and metrics stay unauthenticated.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.AuthToken == "" {
			logger.Warn("bearer auth disabled, API endpoints are open")
		} else {
			r.Use(RequireBearerToken(cfg.AuthToken, logger))
		}
		h.Register(r)
	})

	return r
}

// RequireBearerToken rejects requests without the expected Authorization bearer token
func RequireBearerToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			// Constant-time comparison
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expectedToken)) != 1 {
				logger.WarnContext(r.Context(), "bearer token mismatch",
					"request_id", middleware.GetReqID(r.Context()),
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
