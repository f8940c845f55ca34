package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabia-ai/sabia/internal/api"
	"github.com/sabia-ai/sabia/internal/api/handlers"
	"github.com/sabia-ai/sabia/internal/api/middleware"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/knowledge", func(r chi.Router) {
		r.Post("/search", cfg.KnowledgeHandler.Search)
		r.Get("/search", cfg.KnowledgeHandler.SearchGet)
		r.Get("/list", cfg.KnowledgeHandler.List)
		r.Get("/stats", cfg.KnowledgeHandler.Stats)
		r.Post("/upload", cfg.KnowledgeHandler.Upload)
		r.Get("/{id}", cfg.KnowledgeHandler.Get)
	})

	return r
}
