package api

import (
	"context"
	"net/http"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// OverlapsHandler serves stateless overlap computations over the request body.
type OverlapsHandler struct {
	engine *engine.Engine
}

func NewOverlapsHandler(e *engine.Engine) *OverlapsHandler {
	return &OverlapsHandler{engine: e}
}

func (h *OverlapsHandler) detect(ctx context.Context, req OverlapRequest) ([]segment.OverlapCase, error) {
	subjects, err := toSubjects(req.Subjects)
	if err != nil {
		return nil, err
	}
	return h.engine.DetectOverlaps(ctx, subjects, req.Buckets, req.detectOptions()...)
}

// Detect handles POST /api/v1/overlaps/detect
func (h *OverlapsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req OverlapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	overlaps, err := h.detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OverlapResponse{Count: len(overlaps), Overlaps: nonNil(overlaps)})
}

// Recommend handles POST /api/v1/overlaps/recommend
func (h *OverlapsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req OverlapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	overlaps, err := h.detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	recs := h.engine.Recommend(overlaps)
	writeJSON(w, http.StatusOK, OverlapResponse{Count: len(recs), Overlaps: nonNil(recs)})
}

// Resolve handles POST /api/v1/overlaps/resolve. The decisions are computed
// and journaled but not persisted.
func (h *OverlapsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req OverlapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Strategy == "" {
		req.Strategy = engine.BestFit.String()
	}
	strategy, err := engine.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	overlaps, err := h.detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	decisions, err := h.engine.AutoResolve(r.Context(), h.engine.Recommend(overlaps), strategy.String())
	if err != nil {
		writeError(w, err)
		return
	}
	if decisions == nil {
		decisions = []segment.Decision{}
	}
	writeJSON(w, http.StatusOK, ResolveResponse{
		Strategy:  strategy.String(),
		Overlaps:  len(overlaps),
		Decisions: decisions,
	})
}

// Present handles POST /api/v1/overlaps/present
func (h *OverlapsHandler) Present(w http.ResponseWriter, r *http.Request) {
	var req OverlapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	overlaps, err := h.detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Present(overlaps))
}

// Strategies handles GET /api/v1/strategies
func (h *OverlapsHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.Strategies())
}

func nonNil(overlaps []segment.OverlapCase) []segment.OverlapCase {
	if overlaps == nil {
		return []segment.OverlapCase{}
	}
	return overlaps
}
