package phihttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the PHI field endpoints. Reads and writes carry
// separate guards so read-only roles never gain write access.
func (h *Handler) MountRoutes(r chi.Router, readGuard, writeGuard func(http.Handler) http.Handler) {
	if h == nil {
		return
	}
	r.Group(func(gr chi.Router) {
		if readGuard != nil {
			gr.Use(readGuard)
		}
		gr.Get("/phi/{record}/{field}", h.handleGet)
	})
	r.Group(func(gr chi.Router) {
		if writeGuard != nil {
			gr.Use(writeGuard)
		}
		gr.Put("/phi/{record}/{field}", h.handlePut)
		gr.Delete("/phi/{record}", h.handleDeleteRecord)
	})
}
