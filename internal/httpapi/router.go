package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter assembles the HTTP surface. Every mutating route requires a
// caller identity; reads are open.
func NewRouter(handler *Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, "ok")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue", handler.queueState)
		r.Get("/spots/{sequence}", handler.getSpot)
		r.Get("/pools", handler.listPools)
		r.Get("/positions/{pool}/{account}", handler.getPosition)
		r.Get("/pause", handler.getPause)

		r.Group(func(r chi.Router) {
			r.Use(callerMiddleware)
			r.Post("/requests", handler.submit)
			r.Post("/confirmations", handler.confirm)
			r.Post("/claims", handler.claim)
			r.Post("/pools", handler.registerPool)
			r.Post("/pools/{id}/capacity", handler.updateCapacity)
			r.Post("/pause", handler.setPause)
		})
	})

	return r
}
