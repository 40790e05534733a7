package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zorli-ai/docvault/internal/api/handlers"
	"github.com/zorli-ai/docvault/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
	HealthHandler   *handlers.HealthHandler
	MaxBodyBytes    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/v1/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Workspace)

		r.Route("/v1/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Post("/{id}/reprocess", cfg.DocumentHandler.Reprocess)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/v1/search", cfg.SearchHandler.Search)
	})

	return r
}
