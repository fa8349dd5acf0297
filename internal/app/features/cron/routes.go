package cron

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/digest", h.ServeDigest)
	r.Post("/deadlines", h.ServeDeadlines)
	return r
}
