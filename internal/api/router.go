package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/recordservice"
)

// NewRouter creates a chi router with the record routes. Reads are public;
// writes require a wallet-signed Bearer token.
func NewRouter(svc *recordservice.Service, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()

	r.Get("/programs/{program}/records", h.ListRecords)
	r.Get("/programs/{program}/records/{key}", h.GetRecord)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity())
		r.Post("/programs/{program}/records/{key}", h.InitializeRecord)
		r.Post("/programs/{program}/records/{key}/contributions", h.AppendContribution)
	})

	return r
}
