package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// AuditHandler serves the audit log (startups, archive runs).
type AuditHandler struct {
	store  domain.AuditStore
	logger *slog.Logger
}

func NewAuditHandler(store domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logHandler(logger, "audit")}
}

// ListAudit returns audit entries newest first.
// GET /api/audit?limit=50&offset=0&since=...&until=...
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}
	opts := parseListOpts(r)
	entries, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit entries",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
