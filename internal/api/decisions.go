package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Arbiter/internal/broker"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

type DecisionsHandler struct {
	store  store.Store
	engine *engine.Engine
	broker *broker.Broker
}

func NewDecisionsHandler(s store.Store, e *engine.Engine, b *broker.Broker) *DecisionsHandler {
	return &DecisionsHandler{store: s, engine: e, broker: b}
}

// Manual handles POST /api/v1/decisions/manual
func (h *DecisionsHandler) Manual(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	var req ManualDecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubjectID == "" || req.BucketID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject_id and bucket_id required"})
		return
	}

	ctx := r.Context()
	subject, err := h.store.GetSubject(ctx, req.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if subject == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subject not found"})
		return
	}
	if subject.Assigned() {
		writeError(w, fmt.Errorf("%w: %s is in bucket %s", store.ErrSubjectAssigned, subject.ID, subject.AssignedBucket))
		return
	}

	buckets, err := h.store.ListBuckets(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	overlaps, err := h.engine.DetectOverlaps(ctx, []segment.Subject{*subject}, buckets)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(overlaps) == 0 {
		writeError(w, fmt.Errorf("%w: subject %q is not in an overlap", engine.ErrInvalidInput, subject.ID))
		return
	}

	decision, err := h.engine.ManualDecision(ctx, overlaps[0], req.BucketID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.SaveDecisions(ctx, []segment.Decision{decision}); err != nil {
		writeError(w, err)
		return
	}
	if h.broker != nil {
		h.broker.PublishDecision(decision)
	}

	writeJSON(w, http.StatusCreated, decision)
}

// List handles GET /api/v1/decisions
func (h *DecisionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	q := r.URL.Query()
	filter := store.DecisionFilter{SubjectID: q.Get("subject_id")}
	if v := q.Get("strategy"); v != "" {
		s, err := engine.ParseStrategy(v)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Strategy = s.String()
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	decisions, err := h.store.ListDecisions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if decisions == nil {
		decisions = []segment.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}
