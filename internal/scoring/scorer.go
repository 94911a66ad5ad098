package scoring

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/metrics"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// Breakdown captures the complete scoring output for a single subject–bucket pair.
type Breakdown struct {
	SubjectID  string         `json:"subject_id"`
	BucketID   string         `json:"bucket_id"`
	TotalScore float64        `json:"total_score"`
	Factors    []FactorResult `json:"factors"`
	Eligible   bool           `json:"eligible"`
}

// Scorer orchestrates the 4-factor weighted additive scoring engine and owns
// the score memo.
type Scorer struct {
	weights WeightSet
	curves  Curves
	cache   *ScoreCache
	now     func() time.Time
	logger  *slog.Logger

	scoringNanos atomic.Int64
}

// NewScorer creates a Scorer with the given weights and curves. It fails when
// the weights do not sum to 1.0 or a curve is out of range.
func NewScorer(weights WeightSet, curves Curves, logger *slog.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := curves.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		weights: weights,
		curves:  curves,
		cache:   NewScoreCache(),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// SetClock replaces the time source used for recency bonuses.
func (s *Scorer) SetClock(now func() time.Time) {
	s.now = now
}

// Weights returns the weight set in use.
func (s *Scorer) Weights() WeightSet {
	return s.weights
}

// Cache exposes the score memo for introspection and reset.
func (s *Scorer) Cache() *ScoreCache {
	return s.cache
}

// ClearCache empties the score memo.
func (s *Scorer) ClearCache() int {
	n := s.cache.Clear()
	s.logger.Debug("score memo cleared",
		"entries", n,
		"hits", s.cache.Hits(),
		"misses", s.cache.Misses(),
	)
	return n
}

// ScoringTime returns the cumulative time spent computing uncached scores.
func (s *Scorer) ScoringTime() time.Duration {
	return time.Duration(s.scoringNanos.Load())
}

// Score returns the composite match score for the pair, rounded to three
// decimals. Repeated calls for an unchanged pair are served from the memo.
func (s *Scorer) Score(subject segment.Subject, bucket segment.Bucket) float64 {
	v, hit := s.cache.GetOrCompute(subject, bucket, func() float64 {
		start := time.Now()
		defer func() { s.scoringNanos.Add(int64(time.Since(start))) }()
		return s.compute(subject, bucket.Criteria).TotalScore
	})
	if hit {
		metrics.ScoreCacheHits.Inc()
	} else {
		metrics.ScoreCacheMisses.Inc()
	}
	return v
}

// Explain computes the full factor breakdown without consulting the memo.
func (s *Scorer) Explain(subject segment.Subject, bucket segment.Bucket) Breakdown {
	b := s.compute(subject, bucket.Criteria)
	b.SubjectID = subject.ID
	b.BucketID = bucket.ID
	b.Eligible = segment.Matches(subject, bucket.Criteria)
	return b
}

// VolumeScore re-evaluates the volume factor against the given criteria.
func (s *Scorer) VolumeScore(subject segment.Subject, criteria segment.Criteria) float64 {
	return VolumeFactor(&PairContext{Subject: subject, Criteria: criteria}, s.curves.Volume).Score
}

// MarginScore re-evaluates the margin factor against the given criteria.
func (s *Scorer) MarginScore(subject segment.Subject, criteria segment.Criteria) float64 {
	return MarginFactor(&PairContext{Subject: subject, Criteria: criteria}, s.curves.Margin).Score
}

func (s *Scorer) compute(subject segment.Subject, criteria segment.Criteria) Breakdown {
	pc := &PairContext{Subject: subject, Criteria: criteria, Now: s.now()}

	factors := []FactorResult{
		VolumeFactor(pc, s.curves.Volume),
		PriceFactor(pc, s.curves.Price),
		MarginFactor(pc, s.curves.Margin),
		BusinessValueFactor(pc),
	}
	weights := []float64{
		s.weights.Volume,
		s.weights.Price,
		s.weights.Margin,
		s.weights.Value,
	}

	var total float64
	for i := range factors {
		factors[i].Weight = weights[i]
		factors[i].Weighted = factors[i].Score * weights[i]
		total += factors[i].Weighted
	}

	return Breakdown{
		TotalScore: round3(clamp(total, 0, 1)),
		Factors:    factors,
	}
}
