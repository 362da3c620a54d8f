package routes

import "github.com/go-chi/chi/v5"

// SetupRoutes registers the page, its update stream and the view actions.
func SetupRoutes(router chi.Router, h *ServerHandler) {
	router.Get("/", h.PageHandle)
	router.Get("/healthz", h.HealthHandle)

	router.Route("/views", func(r chi.Router) {
		r.Get("/updates", h.UpdatesHandle)
		r.Post("/columns/{key}", h.ToggleColumnHandle)
		r.Post("/groups/{id}", h.GroupHandle)
		r.Post("/scroll/{role}", h.ScrollHandle)
		r.Post("/retry", h.RetryHandle)
		r.Post("/unmount", h.UnmountHandle)
	})
}
