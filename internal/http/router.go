package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stagedoor/seat-inventory/internal/observability"
	"github.com/stagedoor/seat-inventory/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Post("/v1/sessions", h.CreateSession)
	r.Get("/v1/events/{event_id}/availability", h.CheckAvailability)

	// Customer-facing mutations: rate limited, idempotency required.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl))
		r.Use(IdempotencyMiddleware)
		r.Post("/v1/holds", h.CreateHold)
		r.Post("/v1/holds/release", h.ReleaseHolds)
		r.Post("/v1/holds/extend", h.ExtendHold)
		r.Post("/v1/holds/reconcile", h.Reconcile)
		r.Post("/v1/bookings", h.CommitBooking)
	})

	// Admin operations.
	r.Group(func(r chi.Router) {
		r.Use(AdminAuthMiddleware(h.cfg.AdminToken))
		r.Post("/v1/bookings/reassign", h.ReassignSeat)
		r.Post("/v1/refunds/selective", h.SelectiveRefund)
		r.Post("/v1/refunds/full", h.FullRefundRelease)
		r.Post("/v1/blocks", h.CreateBlock)
		r.Delete("/v1/blocks/{block_id}", h.RemoveBlock)
		r.Get("/v1/events/{event_id}/blocks", h.ListBlocks)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
