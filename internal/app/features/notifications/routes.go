package notifications

import (
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(mw.Require)
		pr.Get("/settings", h.ServeGetSettings)
		pr.Put("/settings", h.ServePutSettings)
		pr.Get("/preview", h.ServePreview)
		pr.Get("/log", h.ServeLog)
		pr.Post("/test", h.ServeTest)
	})
	return r
}
