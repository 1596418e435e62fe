package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
	ws "github.com/storyforge-cloud/email-capture-service/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(subscribers store.SubscriberStore, cache *store.RedisStore, hub *ws.Hub, appAPIURL string, plansCacheTTL time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the landing page
	r.Use(corsMiddleware)

	// Handlers
	subscribeHandler := NewSubscribeHandler(subscribers, hub, logger)
	plansHandler := NewPlansHandler(cache, appAPIURL, plansCacheTTL, logger)
	statsHandler := NewStatsHandler(subscribers, hub)

	// WebSocket endpoint for the ops dashboard
	r.Get("/ws", hub.HandleWebSocket)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Post("/subscribe", subscribeHandler.Subscribe)
		r.Get("/plans", plansHandler.List)
		r.Get("/stats", statsHandler.Stats)
	})

	return r
}

// corsMiddleware adds CORS headers for the statically hosted landing page.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
