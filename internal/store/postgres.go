package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

const defaultSubjectLimit = 10000

var (
	_ Store              = (*PostgresStore)(nil)
	_ engine.JournalSink = (*PostgresStore)(nil)
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// --- Buckets ---

const bucketColumns = `bucket_id, name,
	volume_min, volume_max, price_min, price_max, margin_min, margin_max`

func (s *PostgresStore) UpsertBucket(ctx context.Context, b segment.Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	c := b.Criteria
	_, err := s.pool.Exec(ctx, `
		INSERT INTO arbiter_buckets (`+bucketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bucket_id) DO UPDATE SET
			name = EXCLUDED.name,
			volume_min = EXCLUDED.volume_min, volume_max = EXCLUDED.volume_max,
			price_min = EXCLUDED.price_min, price_max = EXCLUDED.price_max,
			margin_min = EXCLUDED.margin_min, margin_max = EXCLUDED.margin_max,
			updated_at = now()`,
		b.ID, b.Name,
		c.Volume.Min, c.Volume.Max, c.Price.Min, c.Price.Max, c.Margin.Min, c.Margin.Max,
	)
	if err != nil {
		return fmt.Errorf("upsert bucket %s: %w", b.ID, err)
	}
	return nil
}

// ListBuckets returns buckets in creation order, which is the order overlap
// detection breaks score ties in.
func (s *PostgresStore) ListBuckets(ctx context.Context) ([]segment.Bucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bucketColumns+`
		FROM arbiter_buckets
		ORDER BY created_at ASC, bucket_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []segment.Bucket
	for rows.Next() {
		var b segment.Bucket
		c := &b.Criteria
		if err := rows.Scan(&b.ID, &b.Name,
			&c.Volume.Min, &c.Volume.Max, &c.Price.Min, &c.Price.Max, &c.Margin.Min, &c.Margin.Max,
		); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// --- Subjects ---

const subjectColumns = `subject_id, name, total_volume, average_unit_price, profit_margin,
	total_revenue, delivery_count, last_activity, assigned_bucket`

func (s *PostgresStore) UpsertSubject(ctx context.Context, sub segment.Subject) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO arbiter_subjects (`+subjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject_id) DO UPDATE SET
			name = EXCLUDED.name,
			total_volume = EXCLUDED.total_volume,
			average_unit_price = EXCLUDED.average_unit_price,
			profit_margin = EXCLUDED.profit_margin,
			total_revenue = EXCLUDED.total_revenue,
			delivery_count = EXCLUDED.delivery_count,
			last_activity = EXCLUDED.last_activity,
			assigned_bucket = COALESCE(arbiter_subjects.assigned_bucket, EXCLUDED.assigned_bucket),
			updated_at = now()`,
		sub.ID, sub.Name, sub.TotalVolume, sub.AverageUnitPrice, sub.ProfitMargin,
		sub.TotalRevenue, sub.DeliveryCount, nullTime(sub.LastActivity), nullString(sub.AssignedBucket),
	)
	if err != nil {
		return fmt.Errorf("upsert subject %s: %w", sub.ID, err)
	}
	return nil
}

// GetSubject returns nil, nil when no subject has the given id.
func (s *PostgresStore) GetSubject(ctx context.Context, id string) (*segment.Subject, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subjectColumns+`
		FROM arbiter_subjects WHERE subject_id = $1`, id)
	sub, err := scanSubject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) ListUnassignedSubjects(ctx context.Context, limit int) ([]segment.Subject, error) {
	if limit <= 0 {
		limit = defaultSubjectLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+subjectColumns+`
		FROM arbiter_subjects
		WHERE assigned_bucket IS NULL
		ORDER BY subject_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []segment.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func scanSubject(row pgx.Row) (segment.Subject, error) {
	var sub segment.Subject
	var lastActivity *time.Time
	var assigned *string
	if err := row.Scan(&sub.ID, &sub.Name, &sub.TotalVolume, &sub.AverageUnitPrice, &sub.ProfitMargin,
		&sub.TotalRevenue, &sub.DeliveryCount, &lastActivity, &assigned,
	); err != nil {
		return segment.Subject{}, err
	}
	if lastActivity != nil {
		sub.LastActivity = *lastActivity
	}
	if assigned != nil {
		sub.AssignedBucket = *assigned
	}
	return sub, nil
}

// --- Decisions ---

const decisionColumns = `decision_id, subject_id, subject_name, bucket_id, bucket_name,
	strategy, match_score, confidence, reason, alternatives, decided_at`

// SaveDecisions inserts the batch and marks each subject as assigned in a
// single transaction. Any failure rolls back every decision in the batch.
func (s *PostgresStore) SaveDecisions(ctx context.Context, decisions []segment.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range decisions {
		tag, err := tx.Exec(ctx, `
			UPDATE arbiter_subjects SET assigned_bucket = $2, updated_at = now()
			WHERE subject_id = $1 AND assigned_bucket IS NULL`,
			d.SubjectID, d.BucketID)
		if err != nil {
			return fmt.Errorf("assign subject %s: %w", d.SubjectID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrSubjectAssigned, d.SubjectID)
		}

		altJSON, _ := json.Marshal(d.Alternatives)
		if _, err := tx.Exec(ctx, `
			INSERT INTO arbiter_decisions (`+decisionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			d.ID, d.SubjectID, d.SubjectName, d.BucketID, d.BucketName,
			d.Strategy, d.MatchScore, d.Confidence, d.Reason, altJSON, d.DecidedAt,
		); err != nil {
			return fmt.Errorf("insert decision for %s: %w", d.SubjectID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]segment.Decision, error) {
	query, args := buildDecisionQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []segment.Decision
	for rows.Next() {
		var d segment.Decision
		var altJSON []byte
		if err := rows.Scan(&d.ID, &d.SubjectID, &d.SubjectName, &d.BucketID, &d.BucketName,
			&d.Strategy, &d.MatchScore, &d.Confidence, &d.Reason, &altJSON, &d.DecidedAt,
		); err != nil {
			return nil, err
		}
		if altJSON != nil {
			_ = json.Unmarshal(altJSON, &d.Alternatives)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func buildDecisionQuery(filter DecisionFilter) (string, []any) {
	query := `SELECT ` + decisionColumns + ` FROM arbiter_decisions WHERE 1=1`
	args := []any{}
	n := 0

	if filter.SubjectID != "" {
		n++
		query += fmt.Sprintf(" AND subject_id = $%d", n)
		args = append(args, filter.SubjectID)
	}
	if filter.Strategy != "" {
		n++
		query += fmt.Sprintf(" AND strategy = $%d", n)
		args = append(args, filter.Strategy)
	}

	query += " ORDER BY decided_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}
	return query, args
}

// --- Journal ---

// AppendJournal implements engine.JournalSink.
func (s *PostgresStore) AppendJournal(ctx context.Context, entries []engine.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		weightsJSON, _ := json.Marshal(e.Weights)
		batch.Queue(`
			INSERT INTO arbiter_journal (decision_id, subject_id, bucket_id, strategy, confidence,
				weights, resolution_ms, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.Decision.ID, e.Decision.SubjectID, e.Decision.BucketID, e.Decision.Strategy, e.Decision.Confidence,
			weightsJSON, float64(e.ResolutionDuration)/float64(time.Millisecond), e.RecordedAt,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
