package api

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// SubjectRequest is the wire form of a subject. The core metrics are
// pointers so an omitted field is reported instead of read as zero.
type SubjectRequest struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	TotalVolume      *float64   `json:"total_volume"`
	AverageUnitPrice *float64   `json:"average_unit_price"`
	ProfitMargin     *float64   `json:"profit_margin"`
	TotalRevenue     *float64   `json:"total_revenue,omitempty"`
	DeliveryCount    *int       `json:"delivery_count,omitempty"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
	AssignedBucket   string     `json:"assigned_bucket,omitempty"`
}

func (r SubjectRequest) toSubject() (segment.Subject, error) {
	required := []struct {
		name string
		v    *float64
	}{
		{"total_volume", r.TotalVolume},
		{"average_unit_price", r.AverageUnitPrice},
		{"profit_margin", r.ProfitMargin},
	}
	for _, f := range required {
		if f.v == nil {
			return segment.Subject{}, &segment.FieldError{
				Kind: segment.ErrInvalidSubject, Record: r.ID, Field: f.name, Reason: "is required",
			}
		}
	}

	s := segment.Subject{
		ID:               r.ID,
		Name:             r.Name,
		TotalVolume:      *r.TotalVolume,
		AverageUnitPrice: *r.AverageUnitPrice,
		ProfitMargin:     *r.ProfitMargin,
		AssignedBucket:   r.AssignedBucket,
	}
	if r.TotalRevenue != nil {
		s.TotalRevenue = *r.TotalRevenue
	}
	if r.DeliveryCount != nil {
		s.DeliveryCount = *r.DeliveryCount
	}
	if r.LastActivity != nil {
		s.LastActivity = *r.LastActivity
	}
	return s, nil
}

func toSubjects(reqs []SubjectRequest) ([]segment.Subject, error) {
	out := make([]segment.Subject, len(reqs))
	for i, r := range reqs {
		s, err := r.toSubject()
		if err != nil {
			return nil, fmt.Errorf("subject at index %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// OverlapRequest carries the inputs of an overlap computation.
type OverlapRequest struct {
	Subjects       []SubjectRequest `json:"subjects"`
	Buckets        []segment.Bucket `json:"buckets"`
	MatchThreshold *float64         `json:"match_threshold,omitempty"`
	Strategy       string           `json:"strategy,omitempty"`
}

func (r OverlapRequest) detectOptions() []engine.DetectOption {
	if r.MatchThreshold == nil {
		return nil
	}
	return []engine.DetectOption{engine.WithMatchThreshold(*r.MatchThreshold)}
}

type ScoreRequest struct {
	Subject SubjectRequest `json:"subject"`
	Bucket  segment.Bucket `json:"bucket"`
}

type ManualDecisionRequest struct {
	SubjectID string `json:"subject_id"`
	BucketID  string `json:"bucket_id"`
	Reason    string `json:"reason,omitempty"`
}

type OverlapResponse struct {
	Count    int                   `json:"count"`
	Overlaps []segment.OverlapCase `json:"overlaps"`
}

type ResolveResponse struct {
	Strategy  string             `json:"strategy"`
	Overlaps  int                `json:"overlaps"`
	Decisions []segment.Decision `json:"decisions"`
}
