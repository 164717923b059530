package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api/handlers"
	"github.com/adaptivenexus/scandoq-chatboat/internal/api/middleware"
	"github.com/adaptivenexus/scandoq-chatboat/internal/service"
)

const (
	maxJSONBodyBytes int64 = 1 << 20
	// Multipart framing and the title field ride on top of the file itself.
	maxUploadBodyBytes = service.MaxDocumentBytes + 1<<20
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	HealthHandler   *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog)
	r.Use(middleware.BodyLimit(maxJSONBodyBytes, maxUploadBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.OwnerScope)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Get("/{id}/content", cfg.DocumentHandler.Content)
			r.Post("/{id}/process", cfg.DocumentHandler.Process)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/chat", cfg.ChatHandler.Chat)
	})

	return r
}
