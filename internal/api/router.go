package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Arbiter/internal/broker"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

// Requests per caller per minute. Overlap routes score every subject against
// every bucket and carry a second, stricter limit.
const (
	defaultRateLimit = 120
	overlapRateLimit = 30
)

// NewRouter builds the public API. s and b may be nil when the service runs
// without persistence; store-backed routes then answer 503.
func NewRouter(s store.Store, e *engine.Engine, b *broker.Broker, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(NewRateLimiter("api", defaultRateLimit).Middleware)

	overlaps := NewOverlapsHandler(e)
	score := NewScoreHandler(e)
	decisions := NewDecisionsHandler(s, e, b)
	catalog := NewCatalogHandler(s)
	admin := NewAdminHandler(e, b)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/overlaps", func(r chi.Router) {
			r.Use(NewRateLimiter("overlaps", overlapRateLimit).Middleware)
			r.Post("/detect", overlaps.Detect)
			r.Post("/recommend", overlaps.Recommend)
			r.Post("/resolve", overlaps.Resolve)
			r.Post("/present", overlaps.Present)
		})
		r.Get("/strategies", overlaps.Strategies)

		r.Post("/score", score.Score)

		r.Post("/decisions/manual", decisions.Manual)
		r.Get("/decisions", decisions.List)

		r.Post("/buckets", catalog.CreateBucket)
		r.Get("/buckets", catalog.ListBuckets)
		r.Post("/subjects", catalog.CreateSubject)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/metrics", admin.Metrics)
			r.Post("/cache/clear", admin.ClearCache)
			r.Get("/journal", admin.Journal)
			r.Post("/sweep", admin.Sweep)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
