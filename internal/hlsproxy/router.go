package hlsproxy

import (
	"log/slog"
	"net/http"

	"hlsproxy/internal/platform/logger"
	"hlsproxy/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the relay, health and (when met is non-nil) metrics routes.
func NewRouter(h *Handler, log *slog.Logger, met *metrics.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Range", "Origin", "Accept"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Type"},
	}))
	r.Use(logger.RequestLogger(log))
	if met != nil {
		r.Use(metrics.RequestMiddleware(met))
		r.Method(http.MethodGet, "/metrics", met.Handler())
	}
	r.Get(RoutePath, h.ServeHLS)
	r.Get("/healthz", h.Health)
	return r
}
