package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// StrategyStatusSource exposes the running strategies in priority order.
type StrategyStatusSource interface {
	Statuses() []domain.StrategyStatus
}

// JournalSource returns the most recent journal records of a strategy.
type JournalSource interface {
	Recent(strategy string, limit int) []domain.LogRecord
}

// StrategyHandler serves strategy status HTTP endpoints.
type StrategyHandler struct {
	strategies StrategyStatusSource
	journal    JournalSource
	logger     *slog.Logger
}

// NewStrategyHandler creates a StrategyHandler. strategies is nil in monitor
// mode, in which case the list is empty. journal may be nil.
func NewStrategyHandler(strategies StrategyStatusSource, journal JournalSource, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{
		strategies: strategies,
		journal:    journal,
		logger:     logHandler(logger, "strategy"),
	}
}

type listStrategiesResponse struct {
	Strategies []domain.StrategyStatus `json:"strategies"`
}

// ListStrategies returns the status of every strategy, highest priority
// first.
// GET /api/strategies
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	statuses := []domain.StrategyStatus{}
	if h.strategies != nil {
		statuses = append(statuses, h.strategies.Statuses()...)
	}
	writeJSON(w, http.StatusOK, listStrategiesResponse{Strategies: statuses})
}

// GetStrategy returns one strategy's status.
// GET /api/strategies/{name}
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if st, ok := h.find(name); ok {
		writeJSON(w, http.StatusOK, st)
		return
	}
	writeError(w, http.StatusNotFound, "strategy not found: "+name)
}

type journalResponse struct {
	Strategy string             `json:"strategy"`
	Records  []domain.LogRecord `json:"records"`
}

// GetJournal returns the latest journal records of a strategy, oldest first.
// GET /api/strategies/{name}/journal?limit=50
func (h *StrategyHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := h.find(name); !ok {
		writeError(w, http.StatusNotFound, "strategy not found: "+name)
		return
	}
	limit := min(queryInt(r.URL.Query(), "limit", defaultPageSize, 1), maxPageSize)
	records := []domain.LogRecord{}
	if h.journal != nil {
		records = append(records, h.journal.Recent(name, limit)...)
	}
	writeJSON(w, http.StatusOK, journalResponse{Strategy: name, Records: records})
}

func (h *StrategyHandler) find(name string) (domain.StrategyStatus, bool) {
	if h.strategies == nil {
		return domain.StrategyStatus{}, false
	}
	for _, st := range h.strategies.Statuses() {
		if st.Name == name {
			return st, true
		}
	}
	return domain.StrategyStatus{}, false
}
