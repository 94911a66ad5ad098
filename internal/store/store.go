package store

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// ErrSubjectAssigned is returned by SaveDecisions when a subject in the batch
// already belongs to a bucket or does not exist. The whole batch is rolled back.
var ErrSubjectAssigned = errors.New("subject already assigned")

type DecisionFilter struct {
	SubjectID string
	Strategy  string
	Limit     int
	Offset    int
}

// Store persists subjects, buckets, decisions and the decision journal.
type Store interface {
	EnsureSchema(ctx context.Context) error

	// Buckets
	UpsertBucket(ctx context.Context, b segment.Bucket) error
	ListBuckets(ctx context.Context) ([]segment.Bucket, error)

	// Subjects
	UpsertSubject(ctx context.Context, s segment.Subject) error
	GetSubject(ctx context.Context, id string) (*segment.Subject, error)
	ListUnassignedSubjects(ctx context.Context, limit int) ([]segment.Subject, error)

	// Decisions
	SaveDecisions(ctx context.Context, decisions []segment.Decision) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]segment.Decision, error)

	// Journal
	AppendJournal(ctx context.Context, entries []engine.JournalEntry) error

	Close() error
}
