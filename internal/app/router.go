package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/halcyon-health/halcyon/internal/audit/http"
	breakglasshttp "github.com/halcyon-health/halcyon/internal/breakglass/http"
	mfahttp "github.com/halcyon-health/halcyon/internal/mfa/http"
	"github.com/halcyon-health/halcyon/internal/observability"
	phihttp "github.com/halcyon-health/halcyon/internal/phi/http"
	"github.com/halcyon-health/halcyon/internal/rbac"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuditHandler      *audithttp.Handler
	MFAHandler        *mfahttp.Handler
	BreakGlassHandler *breakglasshttp.Handler
	PHIHandler        *phihttp.Handler
	RBACMiddleware    rbac.Middleware
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the default middleware chain and
// permission guards on every domain surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	guard := params.RBACMiddleware

	if params.AuditHandler != nil {
		r.Group(func(gr chi.Router) {
			gr.Use(guard.Require(shared.PermAuditRead))
			params.AuditHandler.MountRoutes(gr)
		})
	}

	if params.MFAHandler != nil {
		r.Group(func(gr chi.Router) {
			gr.Use(guard.Require(shared.PermMFAManage))
			params.MFAHandler.MountRoutes(gr)
		})
	}

	if params.PHIHandler != nil {
		params.PHIHandler.MountRoutes(r,
			guard.Require(shared.PermPHIRead),
			guard.Require(shared.PermPHIWrite),
		)
	}

	if params.BreakGlassHandler != nil {
		// Requesting emergency access stays reachable for any authenticated
		// principal; only approval and revocation carry a permission guard.
		params.BreakGlassHandler.MountRoutes(r, guard.Require(shared.PermBreakGlassApprove))
	}

	return r
}
