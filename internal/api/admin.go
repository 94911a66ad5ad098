package api

import (
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Arbiter/internal/broker"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
)

const defaultJournalLimit = 50

type AdminHandler struct {
	engine *engine.Engine
	broker *broker.Broker
}

func NewAdminHandler(e *engine.Engine, b *broker.Broker) *AdminHandler {
	return &AdminHandler{engine: e, broker: b}
}

func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Metrics())
}

func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := h.engine.ClearCache()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared", "entries": cleared})
}

type JournalResponse struct {
	Summary engine.JournalSummary `json:"summary"`
	Recent  []engine.JournalEntry `json:"recent"`
}

// Journal returns the journal summary and the most recent entries, oldest
// first. GET /api/v1/admin/journal?limit=n
func (h *AdminHandler) Journal(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	recent := h.engine.RecentJournal(limit)
	if recent == nil {
		recent = []engine.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, JournalResponse{
		Summary: h.engine.JournalSummary(),
		Recent:  recent,
	})
}

// Sweep runs one broker sweep synchronously.
// POST /api/v1/admin/sweep?strategy=NAME
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	result, err := h.broker.Sweep(r.Context(), r.URL.Query().Get("strategy"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

