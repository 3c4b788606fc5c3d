// Package breakglasshttp exposes the emergency-access workflow: request,
// approve, revoke, and inspect elevated grants.
package breakglasshttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/halcyon-health/halcyon/internal/breakglass"
	"github.com/halcyon-health/halcyon/internal/platform/httpx"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// Handler serves break-glass endpoints.
type Handler struct {
	service  *breakglass.Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *breakglass.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

type requestBody struct {
	Justification string `json:"justification" validate:"required,min=8"`
}

type grantBody struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
	TTLSeconds  int      `json:"ttl_seconds" validate:"required,min=1"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body requestBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a justification of at least 8 characters is required")
		return
	}
	req, err := h.service.Request(r.Context(), *principal, body.Justification)
	if err != nil {
		h.logger.Error("break-glass request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var body grantBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permissions and ttl_seconds are required")
		return
	}
	requestID := chi.URLParam(r, "id")
	ttl := time.Duration(body.TTLSeconds) * time.Second
	grant, err := h.service.Grant(r.Context(), requestID, principal.ID, body.Permissions, ttl)
	if err != nil {
		h.logger.Error("break-glass grant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.Revoke(r.Context(), chi.URLParam(r, "id"), principal.ID); err != nil {
		h.logger.Error("break-glass revoke", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	grant, err := h.service.ActiveGrant(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("break-glass active", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if grant == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"active": true, "grant": grant})
}
