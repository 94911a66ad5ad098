// Package segment holds the data model shared by the scoring engine, the
// store and the API: subjects, buckets and their criteria, eligible matches,
// overlap cases and decisions.
package segment

import (
	"time"

	"github.com/google/uuid"
)

// Subject is a record competing for classification.
type Subject struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	TotalVolume      float64   `json:"total_volume" yaml:"total_volume"`
	AverageUnitPrice float64   `json:"average_unit_price" yaml:"average_unit_price"`
	ProfitMargin     float64   `json:"profit_margin" yaml:"profit_margin"`
	TotalRevenue     float64   `json:"total_revenue" yaml:"total_revenue"`
	DeliveryCount    int       `json:"delivery_count" yaml:"delivery_count"`
	LastActivity     time.Time `json:"last_activity" yaml:"last_activity"`

	// AssignedBucket is set once the subject has been resolved. Assigned
	// subjects are skipped by overlap detection.
	AssignedBucket string `json:"assigned_bucket,omitempty" yaml:"assigned_bucket,omitempty"`
}

// Assigned reports whether the subject already belongs to a bucket.
func (s Subject) Assigned() bool {
	return s.AssignedBucket != ""
}

// Range is an inclusive numeric range. A nil bound means no constraint on
// that side; a non-nil zero is a real zero bound.
type Range struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Unbounded reports whether neither bound is set.
func (r Range) Unbounded() bool {
	return r.Min == nil && r.Max == nil
}

// Contains reports whether v satisfies every present bound.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Criteria are the inclusion ranges of a bucket.
type Criteria struct {
	Volume Range `json:"volume" yaml:"volume"`
	Price  Range `json:"price" yaml:"price"`
	Margin Range `json:"margin" yaml:"margin"`
}

// Bucket is a named classification group.
type Bucket struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Criteria Criteria `json:"criteria" yaml:"criteria"`
}

// EligibleMatch is a qualifying (subject, bucket) pair.
type EligibleMatch struct {
	BucketID   string   `json:"bucket_id"`
	BucketName string   `json:"bucket_name"`
	Score      float64  `json:"match_score"`
	Criteria   Criteria `json:"criteria"`
}

// Alternative is a runner-up bucket attached to a recommendation or decision.
type Alternative struct {
	BucketID   string  `json:"bucket_id"`
	BucketName string  `json:"bucket_name"`
	Score      float64 `json:"match_score"`
	Reason     string  `json:"reason,omitempty"`
}

// OverlapCase is a subject eligible for two or more buckets.
type OverlapCase struct {
	Subject               Subject         `json:"subject"`
	Matches               []EligibleMatch `json:"eligible_buckets"`
	RecommendedBucketID   string          `json:"recommended_bucket_id"`
	RecommendedBucketName string          `json:"recommended_bucket_name"`
	ConflictReason        string          `json:"conflict_reason"`
	Priority              float64         `json:"priority"`

	// Set by the recommender.
	Enriched     bool          `json:"enriched"`
	Confidence   float64       `json:"confidence,omitempty"`
	Reasoning    string        `json:"reasoning,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// TopGap returns the score difference between the first and second match.
func (o OverlapCase) TopGap() float64 {
	if len(o.Matches) < 2 {
		return 0
	}
	return o.Matches[0].Score - o.Matches[1].Score
}

// Decision is the final, auditable assignment of a subject to a bucket.
type Decision struct {
	ID           uuid.UUID     `json:"id"`
	SubjectID    string        `json:"subject_id"`
	SubjectName  string        `json:"subject_name"`
	BucketID     string        `json:"bucket_id"`
	BucketName   string        `json:"bucket_name"`
	Strategy     string        `json:"strategy"`
	MatchScore   float64       `json:"match_score"`
	Confidence   float64       `json:"confidence"`
	Reason       string        `json:"reason"`
	DecidedAt    time.Time     `json:"decided_at"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}
