package api

import (
	"crypto/subtle"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/Arbiter/internal/metrics"
)

// CallerHeader identifies the client for logging and rate limiting.
const CallerHeader = "X-Caller-ID"

// AdminAuthMiddleware requires "Authorization: Bearer <token>". An empty
// token disables the check.
func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with the response status. Server
// errors are logged at Warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"caller", r.Header.Get(CallerHeader),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}

// RateLimiter is a per-caller sliding window limiter. Each limiter counts
// requests independently, so a route group can carry a stricter limiter on
// top of the router-wide one.
type RateLimiter struct {
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewRateLimiter allows requestsPerMinute requests per caller. scope labels
// rejections in the arbiter_requests_rate_limited_total metric.
func NewRateLimiter(scope string, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		scope:    scope,
		limit:    requestsPerMinute,
		window:   time.Minute,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
}

// allow records a request for key and reports whether it fits the window.
// When it does not, retryAfter is the time until the oldest request expires.
func (rl *RateLimiter) allow(key string) (ok bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	recent := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false, recent[0].Sub(cutoff)
	}
	rl.requests[key] = append(recent, now)

	// Drop callers whose windows have fully expired.
	for k, times := range rl.requests {
		if len(times) > 0 && !times[len(times)-1].After(cutoff) {
			delete(rl.requests, k)
		}
	}
	return true, 0
}

// Middleware rejects callers over the limit with 429 and a Retry-After
// header. Callers are keyed by CallerHeader, falling back to the remote
// address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(CallerHeader)
		if key == "" {
			key = r.RemoteAddr
		}
		ok, retryAfter := rl.allow(key)
		if !ok {
			metrics.RequestsRateLimited.WithLabelValues(rl.scope).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
