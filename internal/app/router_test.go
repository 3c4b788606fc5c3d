package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-health/halcyon/internal/audit"
	audithttp "github.com/halcyon-health/halcyon/internal/audit/http"
	"github.com/halcyon-health/halcyon/internal/observability"
	"github.com/halcyon-health/halcyon/internal/rbac"
	"github.com/halcyon-health/halcyon/internal/shared"
)

const routerPolicy = `
permissions:
  audit.read: List audit entries
roles:
  auditor:
    permissions:
      - audit.read
`

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model, err := rbac.ParsePolicy([]byte(routerPolicy))
	require.NoError(t, err)

	auditService := audit.NewService(audit.NewMemoryRepository(), logger)
	recorder := audit.NewRecorder(auditService, nil, audit.ChainGlobal, logger)
	evaluator := rbac.NewEvaluator(model, nil, recorder, logger)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppRequestTimeout: 0},
		AuditHandler:   audithttp.NewHandler(auditService, logger),
		RBACMiddleware: rbac.Middleware{Evaluator: evaluator, Logger: logger},
		Metrics:        observability.NewMetrics(),
	})
}

func TestRouterHealthz(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterGuardsAuditSurface(t *testing.T) {
	router := testRouter(t)

	// Anonymous request: generic 403, no hint about the missing permission.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Wrong role.
	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("X-Principal-Id", "u1")
	req.Header.Set("X-Principal-Roles", "therapist")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Correct role.
	req = httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("X-Principal-Id", "u2")
	req.Header.Set("X-Principal-Roles", "auditor")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "halcyon_http_requests_total")
}

func TestPrincipalMiddlewareParsesRoles(t *testing.T) {
	var got []string
	handler := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := shared.PrincipalFromContext(r.Context()); p != nil {
			got = p.Roles
		}
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Principal-Id", "u1")
	req.Header.Set("X-Principal-Roles", "therapist, auditor, ,")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, []string{"therapist", "auditor"}, got)
}
