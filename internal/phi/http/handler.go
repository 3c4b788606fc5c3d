// Package phihttp exposes the encrypted field store. Every read and write is
// recorded in the audit trail before the response leaves the handler.
package phihttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halcyon-health/halcyon/internal/audit"
	"github.com/halcyon-health/halcyon/internal/phi"
	"github.com/halcyon-health/halcyon/internal/platform/httpx"
	"github.com/halcyon-health/halcyon/internal/shared"
)

// Handler serves PHI field endpoints.
type Handler struct {
	vault  *phi.Vault
	audit  *audit.Service
	logger *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(vault *phi.Vault, auditSvc *audit.Service, logger *slog.Logger) *Handler {
	return &Handler{vault: vault, audit: auditSvc, logger: logger}
}

type putFieldBody struct {
	Value string `json:"value"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "record")
	field := chi.URLParam(r, "field")

	// The access is recorded before any plaintext leaves the vault. If the
	// trail cannot be written the read does not happen.
	if err := h.record(r, audit.EventPHIAccess, "read", recordID, field); err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	value, err := h.vault.Get(r.Context(), recordID, field)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
			return
		}
		h.logger.Error("phi get", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"value": string(value)})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "record")
	field := chi.URLParam(r, "field")

	var body putFieldBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.record(r, audit.EventPHIUpdate, "write", recordID, field); err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.vault.Put(r.Context(), recordID, field, []byte(body.Value)); err != nil {
		h.logger.Error("phi put", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "record")
	if err := h.record(r, audit.EventPHIDelete, "delete", recordID, ""); err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.vault.DeleteRecord(r.Context(), recordID); err != nil {
		h.logger.Error("phi delete", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, eventType, action, recordID, field string) error {
	actor := ""
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		actor = p.ID
	}
	event := audit.Event{
		ActorID:      actor,
		EventType:    eventType,
		Action:       action,
		ResourceType: "phi_record",
		ResourceID:   recordID,
	}
	if field != "" {
		event.Details = map[string]any{"field": field}
	}
	if _, err := h.audit.Append(r.Context(), event); err != nil {
		h.logger.Error("phi audit append", slog.Any("error", err))
		return err
	}
	return nil
}
