// Package audithttp exposes the operator-facing audit surface: windowed
// listing, JSON/CSV export, and chain verification reports.
package audithttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/halcyon-health/halcyon/internal/audit"
	"github.com/halcyon-health/halcyon/internal/platform/httpx"
)

// Handler serves audit endpoints.
type Handler struct {
	service *audit.Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *audit.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Chain: r.URL.Query().Get("chain"),
		Actor: r.URL.Query().Get("actor"),
		Limit: 200,
	}
	var ok bool
	if filter.From, ok = parseTimeParam(w, r, "from"); !ok {
		return
	}
	if filter.To, ok = parseTimeParam(w, r, "to"); !ok {
		return
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit list", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	req := audit.ExportRequest{
		Chain:  r.URL.Query().Get("chain"),
		Format: r.URL.Query().Get("format"),
	}
	if req.Format == "" {
		req.Format = audit.FormatJSON
	}
	var ok bool
	if req.From, ok = parseTimeParam(w, r, "from"); !ok {
		return
	}
	if req.To, ok = parseTimeParam(w, r, "to"); !ok {
		return
	}
	data, err := h.service.Export(r.Context(), req)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Export Failed", "")
		return
	}
	switch req.Format {
	case audit.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context(), r.URL.Query().Get("chain"))
	if err != nil {
		h.logger.Error("audit verify", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"valid":    result.Valid,
		"break_at": result.BreakAt,
		"checked":  result.Checked,
	})
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return time.Time{}, false
	}
	return t, true
}
