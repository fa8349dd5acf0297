package tasks

import (
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)
		pr.Get("/", h.ServeList)
		pr.Post("/", h.ServeCreate)
		pr.Patch("/{id}", h.ServePatch)
		pr.Post("/{id}/complete", h.ServeComplete)
		pr.Post("/{id}/reopen", h.ServeReopen)
		pr.Delete("/{id}", h.ServeDelete)
	})
	return r
}
