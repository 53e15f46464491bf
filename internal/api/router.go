package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter creates and returns a configured Chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	if h.requestTimeout > 0 {
		r.Use(middleware.Timeout(h.requestTimeout))
	}

	// ── Health check & metrics ────────────────────────────────────────────────
	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {

		// Claims: submit, score, label
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.SubmitClaim)
			r.Get("/high-risk", h.HighRiskClaims)
			r.Get("/{id}", h.GetClaim)
			r.Post("/{id}/score", h.ScoreClaim)
			r.Post("/{id}/label", h.LabelClaim)
		})

		r.Get("/analytics", h.Analytics)

		// Model lifecycle
		r.Route("/model", func(r chi.Router) {
			r.Get("/", h.GetModel)
			r.Post("/train", h.TrainModel)
		})

		// Fraud intelligence over the whole corpus
		r.Route("/intelligence", func(r chi.Router) {
			r.Get("/", h.IntelligenceReport)
			r.Get("/entities", h.RepeatedEntities)
			r.Get("/network", h.FraudNetwork)
			r.Get("/alerts", h.Alerts)
		})

		// Runtime risk thresholds
		r.Get("/config/thresholds", h.GetThresholds)
		r.Put("/config/thresholds", h.UpdateThresholds)

		// Webhook registration
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", h.RegisterWebhook)
			r.Delete("/{id}", h.DeleteWebhook)
		})

		// Admin / demo utilities
		r.Post("/admin/seed", h.SeedData)
	})

	return r
}

// requestLogger is a minimal structured-logging middleware.
// It replaces chi's default Logger to emit zap records and records the
// request in the HTTP metrics under its route pattern.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.metrics.ObserveHTTP(route, ww.Status(), elapsed)

		h.logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
