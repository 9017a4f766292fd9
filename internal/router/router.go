package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mentorlink-backend/internal/handlers"
	"mentorlink-backend/internal/middleware"
	"mentorlink-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	interventionHandler *handlers.InterventionHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","connections":%d}`, wsHub.Registry().Count())
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Check-in & Intervention Routes ────
		r.Route("/checkins", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", interventionHandler.History)
		})

		r.Route("/interventions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/pending", interventionHandler.ListPending)
			r.Post("/{id}/approve", interventionHandler.ManualApprove)
		})

		// ──── Delegated Decision Callback ────
		r.Post("/webhooks/review-decision", webhookHandler.ReviewDecision)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
