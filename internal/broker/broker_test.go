package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Arbiter/internal/config"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/hermes"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

// Mock implementations

type mockStore struct {
	mu        sync.Mutex
	buckets   []segment.Bucket
	subjects  []segment.Subject
	decisions []segment.Decision
	saveErr   error
}

func (m *mockStore) EnsureSchema(_ context.Context) error { return nil }
func (m *mockStore) UpsertBucket(_ context.Context, b segment.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = append(m.buckets, b)
	return nil
}
func (m *mockStore) ListBuckets(_ context.Context) ([]segment.Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]segment.Bucket(nil), m.buckets...), nil
}
func (m *mockStore) UpsertSubject(_ context.Context, s segment.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, s)
	return nil
}
func (m *mockStore) GetSubject(_ context.Context, id string) (*segment.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subjects {
		if m.subjects[i].ID == id {
			s := m.subjects[i]
			return &s, nil
		}
	}
	return nil, nil
}
func (m *mockStore) ListUnassignedSubjects(_ context.Context, _ int) ([]segment.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []segment.Subject
	for _, s := range m.subjects {
		if !s.Assigned() {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *mockStore) SaveDecisions(_ context.Context, decisions []segment.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, d := range decisions {
		for i := range m.subjects {
			if m.subjects[i].ID == d.SubjectID {
				m.subjects[i].AssignedBucket = d.BucketID
			}
		}
	}
	m.decisions = append(m.decisions, decisions...)
	return nil
}
func (m *mockStore) ListDecisions(_ context.Context, _ store.DecisionFilter) ([]segment.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]segment.Decision(nil), m.decisions...), nil
}
func (m *mockStore) AppendJournal(_ context.Context, _ []engine.JournalEntry) error { return nil }
func (m *mockStore) Close() error                                                   { return nil }

func (m *mockStore) assigned(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s.ID == id {
			return s.AssignedBucket
		}
	}
	return ""
}

type published struct {
	subject string
	data    interface{}
}

type mockHermes struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]func(string, []byte)
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}
func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[string]func(string, []byte))
	}
	m.handlers[subject] = handler
	return nil
}
func (m *mockHermes) Close() {}

func (m *mockHermes) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.subject
	}
	return out
}

func (m *mockHermes) count(prefix string) int {
	n := 0
	for _, s := range m.subjects() {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

// Fixtures

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func float64Ptr(v float64) *float64 { return &v }

func testBuckets() []segment.Bucket {
	return []segment.Bucket{
		{ID: "growth", Name: "Growth", Criteria: segment.Criteria{
			Volume: segment.Range{Min: float64Ptr(100), Max: float64Ptr(1000)},
		}},
		{ID: "enterprise", Name: "Enterprise", Criteria: segment.Criteria{
			Volume: segment.Range{Min: float64Ptr(500)},
		}},
	}
}

func testSubjects() []segment.Subject {
	return []segment.Subject{
		{
			ID: "acme", Name: "Acme Corp",
			TotalVolume: 600, AverageUnitPrice: 130, ProfitMargin: 28,
			TotalRevenue: 78000, DeliveryCount: 12,
			LastActivity: fixedNow.Add(-5 * 24 * time.Hour),
		},
		{
			ID: "tiny", Name: "Tiny Ltd",
			TotalVolume: 50, AverageUnitPrice: 90, ProfitMargin: 12,
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Sweep: config.SweepConfig{Strategy: engine.BestFit.String()},
	}
}

func newTestBroker(t *testing.T) (*Broker, *mockStore, *mockHermes) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng, err := engine.New(engine.DefaultOptions(), logger)
	require.NoError(t, err)
	eng.SetClock(func() time.Time { return fixedNow })

	ms := &mockStore{buckets: testBuckets(), subjects: testSubjects()}
	mh := &mockHermes{}
	return New(ms, mh, eng, testConfig(), logger), ms, mh
}

// Tests

func TestSweepResolvesOverlaps(t *testing.T) {
	b, ms, mh := newTestBroker(t)

	result, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "BEST_FIT", result.Strategy)
	assert.Equal(t, 2, result.Subjects)
	assert.Equal(t, 1, result.Overlaps)
	assert.Equal(t, 1, result.Decisions)

	assert.Equal(t, "enterprise", ms.assigned("acme"))
	assert.Empty(t, ms.assigned("tiny"))

	assert.Equal(t, []string{
		hermes.SubjectOverlapDetected("acme"),
		hermes.SubjectDecisionRecorded("acme"),
		hermes.SubjectSweepCompleted,
	}, mh.subjects())

	evt, ok := mh.published[0].data.(hermes.OverlapDetectedEvent)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"growth", "enterprise"}, evt.BucketIDs)
	assert.Equal(t, "enterprise", evt.RecommendedBucketID)
	assert.Greater(t, evt.Confidence, 0.0)
}

func TestSweepIsIdempotentOnceAssigned(t *testing.T) {
	b, ms, _ := newTestBroker(t)

	_, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)
	second, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, second.Subjects)
	assert.Zero(t, second.Overlaps)
	assert.Len(t, ms.decisions, 1)
}

func TestSweepManualOnlyPublishesOverlaps(t *testing.T) {
	b, ms, mh := newTestBroker(t)

	result, err := b.Sweep(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, "MANUAL", result.Strategy)
	assert.Equal(t, 1, result.Overlaps)
	assert.Zero(t, result.Decisions)
	assert.Empty(t, ms.decisions)
	assert.Empty(t, ms.assigned("acme"))
	assert.Equal(t, 1, mh.count("arbiter.overlap."))
	assert.Zero(t, mh.count("arbiter.decision."))
}

func TestSweepNoSubjects(t *testing.T) {
	b, ms, mh := newTestBroker(t)
	ms.subjects = nil

	result, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, result.Subjects)
	assert.Equal(t, []string{hermes.SubjectSweepCompleted}, mh.subjects())
}

func TestSweepNoBuckets(t *testing.T) {
	b, ms, _ := newTestBroker(t)
	ms.buckets = nil

	result, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Subjects)
	assert.Zero(t, result.Overlaps)
}

func TestSweepUnknownStrategy(t *testing.T) {
	b, _, mh := newTestBroker(t)

	_, err := b.Sweep(context.Background(), "FASTEST")
	assert.ErrorIs(t, err, engine.ErrUnknownStrategy)
	assert.Empty(t, mh.subjects())
}

func TestSweepSaveConflict(t *testing.T) {
	b, ms, mh := newTestBroker(t)
	ms.saveErr = fmt.Errorf("%w: acme", store.ErrSubjectAssigned)

	_, err := b.Sweep(context.Background(), "")
	assert.True(t, errors.Is(err, store.ErrSubjectAssigned))
	assert.Zero(t, mh.count("arbiter.decision."))
	assert.Zero(t, mh.count(hermes.SubjectSweepCompleted))
}

func TestSweepWithoutHermes(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng, err := engine.New(engine.DefaultOptions(), logger)
	require.NoError(t, err)
	ms := &mockStore{buckets: testBuckets(), subjects: testSubjects()}

	b := New(ms, nil, eng, testConfig(), logger)
	b.SetupSubscriptions()

	result, err := b.Sweep(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Decisions)
}

func TestResolveRequestSubscription(t *testing.T) {
	b, ms, mh := newTestBroker(t)
	b.SetupSubscriptions()

	handler, ok := mh.handlers[hermes.SubjectResolveRequest]
	require.True(t, ok)

	payload, err := json.Marshal(hermes.ResolveRequestEvent{Strategy: "HIGHEST_VALUE", Source: "test"})
	require.NoError(t, err)
	handler(hermes.SubjectResolveRequest, payload)

	require.Len(t, ms.decisions, 1)
	assert.Equal(t, "HIGHEST_VALUE", ms.decisions[0].Strategy)
}

func TestResolveRequestIgnoresBadPayload(t *testing.T) {
	b, ms, _ := newTestBroker(t)
	b.SetupSubscriptions()

	b.hermes.(*mockHermes).handlers[hermes.SubjectResolveRequest](hermes.SubjectResolveRequest, []byte("{not json"))
	assert.Empty(t, ms.decisions)
}

func TestStartRunsPeriodicSweep(t *testing.T) {
	b, ms, _ := newTestBroker(t)
	b.cfg.Sweep.Enabled = true
	b.cfg.Sweep.IntervalMs = 10
	b.cfg.Engine.CacheResetIntervalMs = 10

	b.Start(context.Background())
	defer b.Stop()

	require.Eventually(t, func() bool {
		return ms.assigned("acme") == "enterprise"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMaintenanceLoopClearsCache(t *testing.T) {
	b, _, _ := newTestBroker(t)
	b.cfg.Engine.CacheResetIntervalMs = 10

	_, err := b.engine.Score(testSubjects()[0], testBuckets()[0])
	require.NoError(t, err)
	require.Equal(t, 1, b.engine.Metrics().CacheSize)

	b.Start(context.Background())
	defer b.Stop()

	require.Eventually(t, func() bool {
		return b.engine.Metrics().CacheSize == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	b, _, _ := newTestBroker(t)
	b.Start(context.Background())
	b.Stop()
	b.Stop()
}
