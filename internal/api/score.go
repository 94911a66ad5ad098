package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
)

type ScoreHandler struct {
	engine *engine.Engine
}

func NewScoreHandler(e *engine.Engine) *ScoreHandler {
	return &ScoreHandler{engine: e}
}

// Score returns the factor breakdown for one subject against one bucket.
// POST /api/v1/score
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	subject, err := req.Subject.toSubject()
	if err != nil {
		writeError(w, err)
		return
	}
	breakdown, err := h.engine.Explain(subject, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
