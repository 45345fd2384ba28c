package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// ExecutionHandler serves the persisted trading results.
type ExecutionHandler struct {
	store  domain.ExecutionStore
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler. store may be nil when
// Postgres is not configured.
func NewExecutionHandler(store domain.ExecutionStore, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{store: store, logger: logHandler(logger, "execution")}
}

type listExecutionsResponse struct {
	Executions []domain.Execution `json:"executions"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// ListExecutions returns executions newest first, optionally filtered by
// strategy.
// GET /api/executions?strategy=name&limit=50&offset=0&since=...&until=...
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution store not configured")
		return
	}
	opts := parseListOpts(r)

	var (
		execs []domain.Execution
		err   error
	)
	if strategy := r.URL.Query().Get("strategy"); strategy != "" {
		execs, err = h.store.ListByStrategy(r.Context(), strategy, opts)
	} else {
		execs, err = h.store.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []domain.Execution{}
	}
	writeJSON(w, http.StatusOK, listExecutionsResponse{
		Executions: execs,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
}
