//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	t.Cleanup(func() {
		// Truncate in dependency order
		_, _ = s.pool.Exec(ctx, "TRUNCATE arbiter_journal")
		_, _ = s.pool.Exec(ctx, "TRUNCATE arbiter_decisions CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE arbiter_subjects CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE arbiter_buckets CASCADE")
		s.Close()
	})

	return s
}

func float64Ptr(v float64) *float64 { return &v }

func seed(t *testing.T, s *PostgresStore) {
	t.Helper()
	ctx := context.Background()
	buckets := []segment.Bucket{
		{ID: "growth", Name: "Growth", Criteria: segment.Criteria{Volume: segment.Range{Min: float64Ptr(100), Max: float64Ptr(1000)}}},
		{ID: "enterprise", Name: "Enterprise", Criteria: segment.Criteria{Volume: segment.Range{Min: float64Ptr(500)}}},
	}
	for _, b := range buckets {
		if err := s.UpsertBucket(ctx, b); err != nil {
			t.Fatalf("UpsertBucket failed: %v", err)
		}
	}
	subjects := []segment.Subject{
		{ID: "cust-1", Name: "Acme", TotalVolume: 600, AverageUnitPrice: 130, ProfitMargin: 28, TotalRevenue: 78000, DeliveryCount: 12, LastActivity: time.Now().Add(-48 * time.Hour)},
		{ID: "cust-2", Name: "Globex", TotalVolume: 300, AverageUnitPrice: 80, ProfitMargin: -2},
	}
	for _, sub := range subjects {
		if err := s.UpsertSubject(ctx, sub); err != nil {
			t.Fatalf("UpsertSubject failed: %v", err)
		}
	}
}

func TestBucketRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	seed(t, s)

	buckets, err := s.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	growth := buckets[0]
	if growth.ID != "growth" {
		t.Errorf("expected creation order, got %s first", growth.ID)
	}
	if growth.Criteria.Volume.Min == nil || *growth.Criteria.Volume.Min != 100 {
		t.Errorf("expected volume min 100, got %v", growth.Criteria.Volume.Min)
	}
	if growth.Criteria.Price.Min != nil || growth.Criteria.Price.Max != nil {
		t.Error("expected absent price bounds to stay nil")
	}
}

func TestUpsertBucketRejectsInvertedRange(t *testing.T) {
	s := setupTestDB(t)
	err := s.UpsertBucket(context.Background(), segment.Bucket{
		ID:       "bad",
		Criteria: segment.Criteria{Volume: segment.Range{Min: float64Ptr(500), Max: float64Ptr(100)}},
	})
	if !errors.Is(err, segment.ErrInvalidBucket) {
		t.Errorf("expected ErrInvalidBucket, got %v", err)
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.GetSubject(ctx, "cust-2")
	if err != nil {
		t.Fatalf("GetSubject failed: %v", err)
	}
	if got == nil || got.ProfitMargin != -2 {
		t.Fatalf("expected cust-2 with margin -2, got %+v", got)
	}
	if !got.LastActivity.IsZero() {
		t.Error("expected zero last activity")
	}

	missing, err := s.GetSubject(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing subject, got %v, %v", missing, err)
	}
}

func TestSaveDecisionsAssignsSubjects(t *testing.T) {
	s := setupTestDB(t)
	seed(t, s)
	ctx := context.Background()

	d := segment.Decision{
		ID:          uuid.New(),
		SubjectID:   "cust-1",
		SubjectName: "Acme",
		BucketID:    "enterprise",
		BucketName:  "Enterprise",
		Strategy:    "BEST_FIT",
		MatchScore:  0.993,
		Confidence:  1,
		Reason:      "highest composite match score",
		DecidedAt:   time.Now().UTC(),
		Alternatives: []segment.Alternative{
			{BucketID: "growth", BucketName: "Growth", Score: 0.951, Reason: "excellent match"},
		},
	}
	if err := s.SaveDecisions(ctx, []segment.Decision{d}); err != nil {
		t.Fatalf("SaveDecisions failed: %v", err)
	}

	unassigned, err := s.ListUnassignedSubjects(ctx, 0)
	if err != nil {
		t.Fatalf("ListUnassignedSubjects failed: %v", err)
	}
	if len(unassigned) != 1 || unassigned[0].ID != "cust-2" {
		t.Errorf("expected only cust-2 unassigned, got %+v", unassigned)
	}

	decisions, err := s.ListDecisions(ctx, DecisionFilter{SubjectID: "cust-1"})
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if len(decisions[0].Alternatives) != 1 || decisions[0].Alternatives[0].BucketID != "growth" {
		t.Errorf("expected alternatives round-trip, got %+v", decisions[0].Alternatives)
	}
}

func TestSaveDecisionsRollsBackOnAssignedSubject(t *testing.T) {
	s := setupTestDB(t)
	seed(t, s)
	ctx := context.Background()

	first := segment.Decision{ID: uuid.New(), SubjectID: "cust-1", BucketID: "enterprise", Strategy: "BEST_FIT", DecidedAt: time.Now()}
	if err := s.SaveDecisions(ctx, []segment.Decision{first}); err != nil {
		t.Fatalf("SaveDecisions failed: %v", err)
	}

	batch := []segment.Decision{
		{ID: uuid.New(), SubjectID: "cust-2", BucketID: "growth", Strategy: "BEST_FIT", DecidedAt: time.Now()},
		{ID: uuid.New(), SubjectID: "cust-1", BucketID: "growth", Strategy: "BEST_FIT", DecidedAt: time.Now()},
	}
	err := s.SaveDecisions(ctx, batch)
	if !errors.Is(err, ErrSubjectAssigned) {
		t.Fatalf("expected ErrSubjectAssigned, got %v", err)
	}

	sub, err := s.GetSubject(ctx, "cust-2")
	if err != nil {
		t.Fatalf("GetSubject failed: %v", err)
	}
	if sub.AssignedBucket != "" {
		t.Errorf("expected cust-2 assignment rolled back, got %s", sub.AssignedBucket)
	}
}

func TestAppendJournal(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entries := []engine.JournalEntry{
		{
			Decision:           segment.Decision{ID: uuid.New(), SubjectID: "cust-1", BucketID: "enterprise", Strategy: "BEST_FIT", Confidence: 0.9},
			Weights:            scoring.DefaultWeights(),
			RecordedAt:         time.Now(),
			ResolutionDuration: 3 * time.Millisecond,
		},
		{
			Decision:   segment.Decision{ID: uuid.New(), SubjectID: "cust-2", BucketID: "growth", Strategy: "BEST_FIT", Confidence: 0.7},
			Weights:    scoring.DefaultWeights(),
			RecordedAt: time.Now(),
		},
	}
	if err := s.AppendJournal(ctx, entries); err != nil {
		t.Fatalf("AppendJournal failed: %v", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM arbiter_journal").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 journal rows, got %d", count)
	}
}
