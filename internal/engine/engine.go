// Package engine detects subjects eligible for more than one bucket, ranks
// their candidates, and resolves each overlap to a single auditable decision.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

const (
	DefaultMatchThreshold      = 0.5
	DefaultConfidenceThreshold = 0.7
	DefaultBatchSize           = 100
	DefaultWorkers             = 4
	DefaultJournalCapacity     = 1000
)

// Options configures an Engine.
type Options struct {
	MatchThreshold      float64
	ConfidenceThreshold float64
	Weights             scoring.WeightSet
	Curves              scoring.Curves
	// BatchSize is the number of subjects evaluated between cancellation checks.
	BatchSize int
	// Workers bounds the goroutines scoring subjects within a batch.
	Workers         int
	JournalCapacity int
}

// DefaultOptions returns the standard thresholds, weights and curves.
func DefaultOptions() Options {
	return Options{
		MatchThreshold:      DefaultMatchThreshold,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Weights:             scoring.DefaultWeights(),
		Curves:              scoring.DefaultCurves(),
		BatchSize:           DefaultBatchSize,
		Workers:             DefaultWorkers,
		JournalCapacity:     DefaultJournalCapacity,
	}
}

// Metrics is the operational snapshot returned by Engine.Metrics.
type Metrics struct {
	DetectionTime  time.Duration `json:"detection_time_ns"`
	ScoringTime    time.Duration `json:"scoring_time_ns"`
	ResolutionTime time.Duration `json:"resolution_time_ns"`
	CacheSize      int           `json:"cache_size"`
	CacheHitCount  int64         `json:"cache_hit_count"`
	HistorySize    int           `json:"history_size"`
}

// Engine is safe for concurrent use.
type Engine struct {
	opts    Options
	scorer  *scoring.Scorer
	journal *Journal
	sink    JournalSink
	now     func() time.Time
	logger  *slog.Logger

	timingMu       sync.Mutex
	detectionTime  time.Duration
	resolutionTime time.Duration
}

// New validates opts and builds an engine. Invalid weights, curves or
// thresholds are configuration errors and fail construction.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	if err := checkThreshold("match threshold", opts.MatchThreshold); err != nil {
		return nil, err
	}
	if err := checkThreshold("confidence threshold", opts.ConfidenceThreshold); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.JournalCapacity <= 0 {
		opts.JournalCapacity = DefaultJournalCapacity
	}

	sc, err := scoring.NewScorer(opts.Weights, opts.Curves, logger)
	if err != nil {
		return nil, fmt.Errorf("creating scorer: %w", err)
	}

	return &Engine{
		opts:    opts,
		scorer:  sc,
		journal: NewJournal(opts.JournalCapacity),
		now:     time.Now,
		logger:  logger,
	}, nil
}

func checkThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidInput, name, v)
	}
	return nil
}

// SetJournalSink installs a best-effort destination for journal entries.
func (e *Engine) SetJournalSink(s JournalSink) {
	e.sink = s
}

// SetClock replaces the time source for decisions, journal entries and
// recency scoring.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.scorer.SetClock(now)
}

// Options returns the effective options after defaults were applied.
func (e *Engine) Options() Options {
	return e.opts
}

// Score returns the composite match score for a single pair.
func (e *Engine) Score(subject segment.Subject, bucket segment.Bucket) (float64, error) {
	if err := validatePair(subject, bucket); err != nil {
		return 0, err
	}
	return e.scorer.Score(subject, bucket), nil
}

// Explain returns the per-factor breakdown behind a pair's score.
func (e *Engine) Explain(subject segment.Subject, bucket segment.Bucket) (scoring.Breakdown, error) {
	if err := validatePair(subject, bucket); err != nil {
		return scoring.Breakdown{}, err
	}
	return e.scorer.Explain(subject, bucket), nil
}

func validatePair(subject segment.Subject, bucket segment.Bucket) error {
	if err := subject.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := bucket.Validate(); err != nil {
		return err
	}
	return nil
}

// Metrics reports timings of the latest detection and resolution runs,
// cumulative scoring time, and memo and journal sizes.
func (e *Engine) Metrics() Metrics {
	e.timingMu.Lock()
	detection, resolution := e.detectionTime, e.resolutionTime
	e.timingMu.Unlock()

	return Metrics{
		DetectionTime:  detection,
		ScoringTime:    e.scorer.ScoringTime(),
		ResolutionTime: resolution,
		CacheSize:      e.scorer.Cache().Len(),
		CacheHitCount:  e.scorer.Cache().Hits(),
		HistorySize:    e.journal.Len(),
	}
}

// ClearCache drops every memoized score and returns how many were dropped.
func (e *Engine) ClearCache() int {
	n := e.scorer.ClearCache()
	e.logger.Info("score cache cleared", "entries", n)
	return n
}

// JournalSummary returns descriptive statistics over recorded decisions.
func (e *Engine) JournalSummary() JournalSummary {
	return e.journal.Summarize()
}

// RecentJournal returns up to n of the newest journal entries, oldest first.
func (e *Engine) RecentJournal(n int) []JournalEntry {
	return e.journal.Recent(n)
}

func (e *Engine) setDetectionTime(d time.Duration) {
	e.timingMu.Lock()
	e.detectionTime = d
	e.timingMu.Unlock()
}

func (e *Engine) setResolutionTime(d time.Duration) {
	e.timingMu.Lock()
	e.resolutionTime = d
	e.timingMu.Unlock()
}
