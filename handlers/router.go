package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the payment routes. limiter may be nil to disable rate
// limiting. trustProxy takes the client address from X-Forwarded-For or
// X-Real-IP; leave it off unless a trusted proxy sets those headers.
func NewRouter(h *Handler, limiter *RateLimiter, trustProxy bool, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	// CORS wraps every route so a browser client on another origin can
	// reach the API.
	r.Use(corsMiddleware)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Use(limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/payments", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
		r.Get("/{id}/events", h.events)
	})

	return r
}
