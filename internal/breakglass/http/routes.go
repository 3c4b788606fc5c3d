package breakglasshttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the break-glass endpoints. Requesting emergency
// access needs no permission beyond authentication; approval and revocation
// sit behind approveGuard.
func (h *Handler) MountRoutes(r chi.Router, approveGuard func(http.Handler) http.Handler) {
	if h == nil {
		return
	}
	r.Post("/break-glass/requests", h.handleRequest)
	r.Get("/break-glass/active", h.handleActive)
	r.Group(func(gr chi.Router) {
		if approveGuard != nil {
			gr.Use(approveGuard)
		}
		gr.Post("/break-glass/requests/{id}/grant", h.handleGrant)
		gr.Post("/break-glass/grants/{id}/revoke", h.handleRevoke)
	})
}
