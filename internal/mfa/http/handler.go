// Package mfahttp exposes enrollment and verification endpoints. Failed
// verifications return the same generic 401 whether the user is unenrolled,
// the code is wrong, or the code was replayed.
package mfahttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/halcyon-health/halcyon/internal/mfa"
	"github.com/halcyon-health/halcyon/internal/observability"
	"github.com/halcyon-health/halcyon/internal/platform/httpx"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// Handler serves MFA endpoints.
type Handler struct {
	service  *mfa.Service
	logger   *slog.Logger
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *mfa.Service, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(),
	}
}

type enrollRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type verifyRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Code   string `json:"code" validate:"required"`
}

type recoveryGenerateRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Count  int    `json:"count" validate:"omitempty,min=1,max=20"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id is required")
		return
	}
	prov, err := h.service.Enroll(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("mfa enroll", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// The shared secret crosses the wire exactly once, here.
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"secret": prov.Secret,
		"url":    prov.URL,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id and code are required")
		return
	}
	if err := h.service.Verify(r.Context(), req.UserID, req.Code); err != nil {
		h.recordFailure(err)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecoveryGenerate(w http.ResponseWriter, r *http.Request) {
	var req recoveryGenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "count must be between 1 and 20")
		return
	}
	if req.Count == 0 {
		req.Count = mfa.DefaultRecoveryCodes
	}
	codes, err := h.service.GenerateRecoveryCodes(r.Context(), req.UserID, req.Count)
	if err != nil {
		h.logger.Error("recovery generate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"codes": codes})
}

func (h *Handler) handleRecoveryVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id and code are required")
		return
	}
	if err := h.service.VerifyRecovery(r.Context(), req.UserID, req.Code); err != nil {
		h.recordFailure(err)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user is required")
		return
	}
	enrolled, err := h.service.Enrolled(r.Context(), userID)
	if err != nil {
		h.logger.Error("mfa status", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"enrolled": enrolled})
}

func (h *Handler) recordFailure(err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, shared.ErrReplay):
		reason = "replay"
	case errors.Is(err, shared.ErrNotFound):
		reason = "unknown"
	}
	h.metrics.MFAFailure(reason)
}
