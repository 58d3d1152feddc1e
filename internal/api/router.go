// Package api exposes assessment sessions and their results over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/pai-assess/internal/notify"
	"github.com/p-n-ai/pai-assess/internal/session"
)

const (
	requestTimeout = 30 * time.Second
	checkTimeout   = 2 * time.Second
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds dependencies for the HTTP surface.
type Config struct {
	Engine         *session.Engine
	Hub            *notify.Hub
	AllowedOrigins []string
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]HealthChecker
}

type server struct {
	engine  *session.Engine
	hub     *notify.Hub
	origins []string
	checks  map[string]HealthChecker
}

// NewRouter builds the chi router for the assessment API.
func NewRouter(cfg Config) http.Handler {
	s := &server{
		engine:  cfg.Engine,
		hub:     cfg.Hub,
		origins: cfg.AllowedOrigins,
		checks:  cfg.Checks,
	}
	if s.hub == nil {
		s.hub = notify.NewHub()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/v1/assessments/{invite}", func(r chi.Router) {
		// The event stream is long-lived and stays outside the request timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/", s.handleOpen)
			r.Post("/responses", s.handleSave)
			r.Post("/submit", s.handleSubmit)
			r.Get("/results/overview", s.handleOverview)
			r.Get("/results/detailed", s.handleDetailed)
			r.Get("/results/export.xlsx", s.handleExport)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
