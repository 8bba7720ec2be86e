package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/requiemhq/requiem-api/internal/api"
	apiMiddleware "github.com/requiemhq/requiem-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and
// middleware registered.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.userService, app.jwtService)
	progressHandler := api.NewProgressHandler(app.progressService, app.config.Progress)
	chatHandler := api.NewChatHandler(
		app.messageStore,
		app.generator,
		app.progressService,
		app.config.Chat,
		app.config.Progress,
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Progress endpoints
			r.Get("/progress", progressHandler.GetProgress)
			r.Get("/progress/report", progressHandler.GetReport)
			r.Put("/progress/{id}", progressHandler.UpdateTask)
			r.Post("/progress/reset", progressHandler.ResetProgress)

			// Chat endpoints
			r.Post("/chat/message", chatHandler.PostMessage)
			r.Get("/chat/history", chatHandler.GetHistory)
		})
	})

	// Prometheus scrape endpoint
	r.Get("/monitoring/metrics", promhttp.HandlerFor(
		app.registry,
		promhttp.HandlerOpts{Registry: app.registry},
	).ServeHTTP)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
