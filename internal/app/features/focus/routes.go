package focus

import (
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)
		pr.Get("/", h.ServeGet)
		pr.Put("/", h.ServePut)
	})
	return r
}
