package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

// CatalogHandler manages the persisted buckets and subjects a sweep reads.
type CatalogHandler struct {
	store store.Store
}

func NewCatalogHandler(s store.Store) *CatalogHandler {
	return &CatalogHandler{store: s}
}

// CreateBucket handles POST /api/v1/buckets
func (h *CatalogHandler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	var b segment.Bucket
	if !decodeJSON(w, r, &b) {
		return
	}
	if err := h.store.UpsertBucket(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListBuckets handles GET /api/v1/buckets
func (h *CatalogHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	buckets, err := h.store.ListBuckets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if buckets == nil {
		buckets = []segment.Bucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

// CreateSubject handles POST /api/v1/subjects
func (h *CatalogHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, errStoreUnavailable)
		return
	}
	var req SubjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := req.toSubject()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.UpsertSubject(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}
