// Package api exposes job creation and polling over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/monitoring"
	"github.com/sells-group/campaign-cli/internal/store"
)

// JobService is the orchestrator surface used by the handlers.
type JobService interface {
	Submit(ctx context.Context, req model.GenerationRequest) (*model.Job, error)
	Status(ctx context.Context, id string) (*model.JobView, error)
	List(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// MetricsSource produces job health snapshots for GET /metrics.
type MetricsSource interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.MetricsSnapshot, error)
}

// Option configures optional routes.
type Option func(*handlers)

// WithMetrics mounts GET /metrics backed by src.
func WithMetrics(src MetricsSource) Option {
	return func(h *handlers) { h.metrics = src }
}

// NewRouter builds the HTTP handler.
func NewRouter(svc JobService, allowedOrigins []string, opts ...Option) http.Handler {
	h := &handlers{jobs: svc}
	for _, opt := range opts {
		opt(h)
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Get("/metrics", h.getMetrics)
	}
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.createJob)
		r.Get("/", h.listJobs)
		r.Get("/{jobID}", h.getJob)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
