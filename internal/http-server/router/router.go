package router

import (
	"net/http"

	"tryon-web/internal/http-server/handler/tryon"
	"tryon-web/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/wb-go/wbf/zlog"
)

type Handler struct {
	TryOnHandler *tryon.TryOnHandler
}

func SetupRouter(h *Handler, logger *zlog.Zerolog) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger, "/api/state", "/health"))

	r.Get("/", h.TryOnHandler.Index)

	r.Route("/slots/{slot}", func(r chi.Router) {
		r.Post("/", h.TryOnHandler.SelectFile)
		r.Post("/remove", h.TryOnHandler.RemoveFile)
	})

	r.Route("/try-on", func(r chi.Router) {
		r.Post("/", h.TryOnHandler.Submit)
		r.Post("/dismiss", h.TryOnHandler.DismissError)
	})
	r.Post("/reset", h.TryOnHandler.Reset)

	r.Get("/previews/{id}", h.TryOnHandler.Preview)

	r.Route("/result", func(r chi.Router) {
		r.Get("/image", h.TryOnHandler.ResultImage)
		r.Get("/download", h.TryOnHandler.Download)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.TryOnHandler.State)
	})

	r.Get("/health", h.TryOnHandler.Health)

	return r
}
