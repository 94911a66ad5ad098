package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Arbiter/internal/broker"
	"github.com/MikeSquared-Agency/Arbiter/internal/config"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

// Mocks

type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockStore) UpsertBucket(ctx context.Context, b segment.Bucket) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockStore) ListBuckets(ctx context.Context) ([]segment.Bucket, error) {
	args := m.Called(ctx)
	buckets, _ := args.Get(0).([]segment.Bucket)
	return buckets, args.Error(1)
}
func (m *mockStore) UpsertSubject(ctx context.Context, s segment.Subject) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockStore) GetSubject(ctx context.Context, id string) (*segment.Subject, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*segment.Subject)
	return s, args.Error(1)
}
func (m *mockStore) ListUnassignedSubjects(ctx context.Context, limit int) ([]segment.Subject, error) {
	args := m.Called(ctx, limit)
	subjects, _ := args.Get(0).([]segment.Subject)
	return subjects, args.Error(1)
}
func (m *mockStore) SaveDecisions(ctx context.Context, decisions []segment.Decision) error {
	return m.Called(ctx, decisions).Error(0)
}
func (m *mockStore) ListDecisions(ctx context.Context, filter store.DecisionFilter) ([]segment.Decision, error) {
	args := m.Called(ctx, filter)
	decisions, _ := args.Get(0).([]segment.Decision)
	return decisions, args.Error(1)
}
func (m *mockStore) AppendJournal(ctx context.Context, entries []engine.JournalEntry) error {
	return m.Called(ctx, entries).Error(0)
}
func (m *mockStore) Close() error { return nil }

// Fixtures

const acmeJSON = `{"id":"acme","name":"Acme Corp","total_volume":600,"average_unit_price":130,` +
	`"profit_margin":28,"total_revenue":78000,"delivery_count":12}`

const bucketsJSON = `[` +
	`{"id":"growth","name":"Growth","criteria":{"volume":{"min":100,"max":1000}}},` +
	`{"id":"enterprise","name":"Enterprise","criteria":{"volume":{"min":500}}}]`

func float64Ptr(v float64) *float64 { return &v }

func testBuckets() []segment.Bucket {
	return []segment.Bucket{
		{ID: "growth", Name: "Growth", Criteria: segment.Criteria{Volume: segment.Range{Min: float64Ptr(100), Max: float64Ptr(1000)}}},
		{ID: "enterprise", Name: "Enterprise", Criteria: segment.Criteria{Volume: segment.Range{Min: float64Ptr(500)}}},
	}
}

func acme() segment.Subject {
	return segment.Subject{
		ID: "acme", Name: "Acme Corp",
		TotalVolume: 600, AverageUnitPrice: 130, ProfitMargin: 28,
		TotalRevenue: 78000, DeliveryCount: 12,
	}
}

type testServer struct {
	router http.Handler
	store  *mockStore
	engine *engine.Engine
}

func setupTestRouter(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(engine.DefaultOptions(), logger)
	require.NoError(t, err)

	ms := &mockStore{}
	cfg := &config.Config{Sweep: config.SweepConfig{Strategy: engine.BestFit.String()}}
	b := broker.New(ms, nil, eng, cfg, logger)
	return &testServer{
		router: NewRouter(ms, eng, b, "test-token", logger),
		store:  ms,
		engine: eng,
	}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, "test-caller")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func overlapBody(subjects, extra string) string {
	return `{"subjects":[` + subjects + `],"buckets":` + bucketsJSON + extra + `}`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

// Overlap computations

func TestDetectOverlaps(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/detect", overlapBody(acmeJSON, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[OverlapResponse](t, w)
	require.Equal(t, 1, resp.Count)
	oc := resp.Overlaps[0]
	assert.Equal(t, "acme", oc.Subject.ID)
	assert.Len(t, oc.Matches, 2)
	assert.Equal(t, oc.Matches[0].BucketID, oc.RecommendedBucketID)
	assert.False(t, oc.Enriched)
}

func TestDetectNoOverlapsReturnsEmptyList(t *testing.T) {
	ts := setupTestRouter(t)

	small := `{"id":"tiny","total_volume":50,"average_unit_price":90,"profit_margin":12}`
	w := ts.do("POST", "/api/v1/overlaps/detect", overlapBody(small, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"overlaps":[]}`, w.Body.String())
}

func TestDetectMatchThresholdOverride(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/detect", overlapBody(acmeJSON, `,"match_threshold":0.999`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[OverlapResponse](t, w).Count)

	w = ts.do("POST", "/api/v1/overlaps/detect", overlapBody(acmeJSON, `,"match_threshold":1.5`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"invalid json", `{"subjects":`, "invalid request body"},
		{"missing margin", overlapBody(`{"id":"x","total_volume":10,"average_unit_price":5}`, ""), "profit_margin"},
		{"no subjects", overlapBody("", ""), "invalid input"},
		{"zero price", overlapBody(`{"id":"x","total_volume":10,"average_unit_price":0,"profit_margin":5}`, ""), "average_unit_price"},
		{"inverted bucket", `{"subjects":[` + acmeJSON + `],"buckets":[{"id":"b","criteria":{"price":{"min":10,"max":1}}}]}`, "invalid bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestRouter(t)
			w := ts.do("POST", "/api/v1/overlaps/detect", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestRecommendEnrichesOverlaps(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/recommend", overlapBody(acmeJSON, ""))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[OverlapResponse](t, w)
	require.Equal(t, 1, resp.Count)
	oc := resp.Overlaps[0]
	assert.True(t, oc.Enriched)
	assert.Greater(t, oc.Confidence, 0.0)
	assert.NotEmpty(t, oc.Reasoning)
	assert.Len(t, oc.Alternatives, 1)
}

func TestResolveDefaultsToBestFit(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/resolve", overlapBody(acmeJSON, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ResolveResponse](t, w)
	assert.Equal(t, "BEST_FIT", resp.Strategy)
	assert.Equal(t, 1, resp.Overlaps)
	require.Len(t, resp.Decisions, 1)
	assert.Equal(t, "acme", resp.Decisions[0].SubjectID)
	assert.Equal(t, 1, ts.engine.Metrics().HistorySize)
	ts.store.AssertNotCalled(t, "SaveDecisions", mock.Anything, mock.Anything)
}

func TestResolveStrategyErrors(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/resolve", overlapBody(acmeJSON, `,"strategy":"manual"`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "manual")

	w = ts.do("POST", "/api/v1/overlaps/resolve", overlapBody(acmeJSON, `,"strategy":"FASTEST"`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BEST_FIT")
}

func TestPresent(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/overlaps/present", overlapBody(acmeJSON, ""))
	require.Equal(t, http.StatusOK, w.Code)

	bundle := decode[engine.Bundle](t, w)
	assert.Equal(t, 1, bundle.Summary.TotalConflicts)
	require.Len(t, bundle.Conflicts, 1)
	assert.Equal(t, "$78,000.00", bundle.Conflicts[0].Revenue)
	assert.Equal(t, "600 units", bundle.Conflicts[0].Volume)
	require.Len(t, bundle.Recommendations, 1)
	assert.Len(t, bundle.Metadata.Strategies, 5)
}

func TestStrategies(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("GET", "/api/v1/strategies", "")
	require.Equal(t, http.StatusOK, w.Code)

	infos := decode[[]engine.StrategyInfo](t, w)
	require.Len(t, infos, 5)
	assert.Equal(t, "BEST_FIT", infos[0].Name)
	assert.False(t, infos[4].AutoResolvable)
}

func TestScoreBreakdown(t *testing.T) {
	ts := setupTestRouter(t)

	body := `{"subject":` + acmeJSON + `,"bucket":{"id":"growth","criteria":{"volume":{"min":100,"max":1000}}}}`
	w := ts.do("POST", "/api/v1/score", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	bd := decode[scoring.Breakdown](t, w)
	assert.Equal(t, "acme", bd.SubjectID)
	assert.True(t, bd.Eligible)
	assert.Len(t, bd.Factors, 4)
	assert.Greater(t, bd.TotalScore, 0.0)

	body = `{"subject":` + acmeJSON + `,"bucket":{"id":"luxury","criteria":{"price":{"min":200}}}}`
	w = ts.do("POST", "/api/v1/score", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[scoring.Breakdown](t, w).Eligible)
}

func TestScoreRejectsMissingSubjectFields(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/score", `{"subject":{"id":"x"},"bucket":{"id":"b"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "total_volume")
}

// Catalog

func TestCreateBucket(t *testing.T) {
	ts := setupTestRouter(t)
	ts.store.On("UpsertBucket", mock.Anything, testBuckets()[0]).Return(nil)

	w := ts.do("POST", "/api/v1/buckets", `{"id":"growth","name":"Growth","criteria":{"volume":{"min":100,"max":1000}}}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ts.store.AssertExpectations(t)
}

func TestCreateBucketInvalid(t *testing.T) {
	ts := setupTestRouter(t)
	ts.store.On("UpsertBucket", mock.Anything, mock.Anything).
		Return(&segment.FieldError{Kind: segment.ErrInvalidBucket, Record: "b", Field: "volume", Reason: "minimum 5 exceeds maximum 1"})

	w := ts.do("POST", "/api/v1/buckets", `{"id":"b","criteria":{"volume":{"min":5,"max":1}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBuckets(t *testing.T) {
	ts := setupTestRouter(t)
	ts.store.On("ListBuckets", mock.Anything).Return(testBuckets(), nil)

	w := ts.do("GET", "/api/v1/buckets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]segment.Bucket](t, w), 2)
}

func TestCreateSubject(t *testing.T) {
	ts := setupTestRouter(t)
	ts.store.On("UpsertSubject", mock.Anything, acme()).Return(nil)

	w := ts.do("POST", "/api/v1/subjects", acmeJSON)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ts.store.AssertExpectations(t)
}

func TestCreateSubjectMissingField(t *testing.T) {
	ts := setupTestRouter(t)

	w := ts.do("POST", "/api/v1/subjects", `{"id":"x","total_volume":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	ts.store.AssertNotCalled(t, "UpsertSubject", mock.Anything, mock.Anything)
}

func TestStoreRoutesWithoutPersistence(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(engine.DefaultOptions(), logger)
	require.NoError(t, err)
	router := NewRouter(nil, eng, nil, "", logger)

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/v1/buckets", ""},
		{"POST", "/api/v1/subjects", acmeJSON},
		{"GET", "/api/v1/decisions", ""},
		{"POST", "/api/v1/decisions/manual", `{"subject_id":"acme","bucket_id":"growth"}`},
		{"POST", "/api/v1/admin/sweep", ""},
	} {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
	}

	// Stateless computations still work.
	req := httptest.NewRequest("POST", "/api/v1/overlaps/detect", bytes.NewBufferString(overlapBody(acmeJSON, "")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arbiter_")
}
