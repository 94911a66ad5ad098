package hermes

import "time"

// ResolveRequestEvent asks the broker to run a sweep with the given strategy.
// An empty strategy falls back to the configured one.
type ResolveRequestEvent struct {
	Strategy string `json:"strategy,omitempty"`
	Source   string `json:"source,omitempty"`
}

type OverlapDetectedEvent struct {
	SubjectID           string   `json:"subject_id"`
	SubjectName         string   `json:"subject_name"`
	BucketIDs           []string `json:"bucket_ids"`
	RecommendedBucketID string   `json:"recommended_bucket_id"`
	Confidence          float64  `json:"confidence"`
	Priority            float64  `json:"priority"`
}

type DecisionRecordedEvent struct {
	DecisionID string    `json:"decision_id"`
	SubjectID  string    `json:"subject_id"`
	BucketID   string    `json:"bucket_id"`
	Strategy   string    `json:"strategy"`
	MatchScore float64   `json:"match_score"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	DecidedAt  time.Time `json:"decided_at"`
}

type SweepCompletedEvent struct {
	Strategy   string    `json:"strategy"`
	Subjects   int       `json:"subjects"`
	Overlaps   int       `json:"overlaps"`
	Decisions  int       `json:"decisions"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
