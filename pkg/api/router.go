package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/loader"
	"github.com/egnor/video-play/pkg/metrics"
)

// NewRouter creates the chi router for the status API.
//
// Routes:
//   - GET /healthz - liveness probe
//   - GET /api/v1/loaders - live loader list
//   - GET /api/v1/loaders/{id} - one loader's cache state
//   - GET /metrics - Prometheus metrics (only when metrics are enabled)
func NewRouter(registry *loader.Registry) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, OKResponse(nil))
	})

	loaders := NewLoaderHandler(registry)
	r.Route("/api/v1/loaders", func(r chi.Router) {
		r.Get("/", loaders.List)
		r.Get("/{id}", loaders.Get)
	})

	if h := metrics.Handler(); h != nil {
		r.Method(http.MethodGet, "/metrics", h)
	}

	return r
}

// requestLogger logs requests through the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("API request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.KeyDuration, logger.DurationMs(start),
		)
	})
}
