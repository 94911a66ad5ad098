package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

const maxBodyBytes = 8 << 20

var errStoreUnavailable = errors.New("persistence is not configured")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to its HTTP status by sentinel.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, segment.ErrInvalidSubject),
		errors.Is(err, segment.ErrInvalidBucket),
		errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, engine.ErrUnknownStrategy),
		errors.Is(err, engine.ErrManualStrategy),
		errors.Is(err, scoring.ErrInvalidWeights),
		errors.Is(err, scoring.ErrInvalidCurve):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDuplicateDecision),
		errors.Is(err, store.ErrSubjectAssigned):
		return http.StatusConflict
	case errors.Is(err, errStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}
