package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbartos/pension-reservations/internal/idempotency"
	"github.com/mbartos/pension-reservations/internal/observability"
	"github.com/mbartos/pension-reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Get("/v1/availability", h.GetAvailability)
	r.Get("/v1/availability/bulk", h.GetBulkAvailability)
	r.Post("/v1/quotes", h.Quote)

	r.Group(func(r chi.Router) {
		r.Use(IdempotencyMiddleware(idemp))
		r.Post("/v1/holds", h.CreateHold)
		r.Post("/v1/bookings", h.ConfirmBooking)
	})

	r.Delete("/v1/holds/{id}", h.DeleteHold)
	r.Post("/v1/holds/{id}/finalize", h.FinalizeHold)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Delete("/v1/bookings/{id}", h.CancelBooking)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
