package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// newRouter wires the routes behind the middleware chain:
// recovery -> cors -> auth -> logging -> routes.
func newRouter(h *handler, apiKey, corsOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(chimiddleware.RequestID)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(authMiddleware(apiKey))
	r.Use(logMiddleware(h.metrics))

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.handler())

	r.Post("/query", h.handleQuery)
	r.Post("/rebuild", h.handleRebuild)
	r.Get("/graph", h.handleGraph)
	r.Get("/stats", h.handleStats)
	r.Get("/builds", h.handleBuilds)
	r.Get("/rules/{id}", h.handleRule)

	return r
}
