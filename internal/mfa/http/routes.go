package mfahttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const verifyRateLimit = 10
const verifyRateWindow = time.Minute

// MountRoutes registers the MFA endpoints. Verification routes are rate
// limited per client so codes cannot be brute forced faster than the
// detector window notices.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(verifyRateLimit, verifyRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Post("/mfa/enroll", h.handleEnroll)
	r.Post("/mfa/recovery", h.handleRecoveryGenerate)
	r.Get("/mfa/status", h.handleStatus)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/mfa/verify", h.handleVerify)
		gr.Post("/mfa/recovery/verify", h.handleRecoveryVerify)
	})
}
