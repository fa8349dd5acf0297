package teams

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
		pr.Post("/join", h.ServeJoin)
		pr.Get("/{id}", h.ServeView)
		pr.Post("/{id}/leave", h.ServeLeave)
		pr.Post("/{id}/token", h.ServeRotateToken)
		pr.Delete("/{id}", h.ServeDelete)
	})
	return r
}
