// Package httpapi exposes herdbook analysis over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"herdbook/internal/core"
	"herdbook/internal/reports"
)

// Options wires the router's collaborators. Exporter and Metrics are
// optional; their routes answer 501 and 404 respectively when unset.
type Options struct {
	Service  *core.Service
	Exporter *reports.Exporter
	Logger   core.Logger
	// Metrics serves GET /metrics, typically promhttp.HandlerFor.
	Metrics http.Handler
	// RetryAfter is advertised on 503 responses. Defaults to 5 seconds.
	RetryAfter time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	h := &handler{
		svc:        opts.Service,
		exporter:   opts.Exporter,
		logger:     opts.Logger,
		retryAfter: opts.RetryAfter,
	}
	if h.logger == nil {
		h.logger = core.NewZapLogger(nil)
	}
	if h.retryAfter <= 0 {
		h.retryAfter = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/recommendations", h.listRecommendations)
	r.Post("/relationships", h.classifyRelationship)
	r.Get("/animals/{animalID}/depth", h.generationDepth)
	r.Post("/depths/sync", h.syncDepths)
	r.Route("/seasonal", func(sr chi.Router) {
		sr.Get("/", h.seasonalTrends)
		sr.Post("/analyze", h.analyzeSeasonal)
	})
	r.Route("/reports", func(rr chi.Router) {
		rr.Post("/recommendations", h.exportRecommendations)
		rr.Post("/seasonal", h.exportSeasonal)
	})
	return r
}

func requestLogger(logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
