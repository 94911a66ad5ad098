package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/metrics"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// DetectOption overrides an engine default for a single detection call.
type DetectOption func(*detectConfig)

type detectConfig struct {
	matchThreshold float64
}

// WithMatchThreshold sets the minimum composite score for a match to count.
func WithMatchThreshold(t float64) DetectOption {
	return func(c *detectConfig) { c.matchThreshold = t }
}

// DetectOverlaps returns every unassigned subject with two or more eligible
// buckets scoring at or above the match threshold, sorted by descending
// priority. Inputs are validated in full before any scoring; on error no
// partial result is returned.
func (e *Engine) DetectOverlaps(ctx context.Context, subjects []segment.Subject, buckets []segment.Bucket, opts ...DetectOption) ([]segment.OverlapCase, error) {
	cfg := detectConfig{matchThreshold: e.opts.MatchThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := checkThreshold("match threshold", cfg.matchThreshold); err != nil {
		return nil, err
	}
	if err := validateInputs(subjects, buckets); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]*segment.OverlapCase, len(subjects))
	for lo := 0; lo < len(subjects); lo += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+e.opts.BatchSize, len(subjects))
		e.evaluateBatch(subjects[lo:hi], results[lo:hi], buckets, cfg.matchThreshold)
	}

	overlaps := make([]segment.OverlapCase, 0)
	for _, oc := range results {
		if oc != nil {
			overlaps = append(overlaps, *oc)
		}
	}
	sort.SliceStable(overlaps, func(i, j int) bool {
		return overlaps[i].Priority > overlaps[j].Priority
	})

	elapsed := time.Since(start)
	e.setDetectionTime(elapsed)
	metrics.DetectionRuns.Inc()
	metrics.DetectionDuration.Observe(elapsed.Seconds())
	metrics.OverlapsDetected.Add(float64(len(overlaps)))

	e.logger.Info("overlap detection complete",
		"subjects", len(subjects),
		"buckets", len(buckets),
		"overlaps", len(overlaps),
		"threshold", cfg.matchThreshold,
		"duration_ms", elapsed.Milliseconds(),
	)
	return overlaps, nil
}

// evaluateBatch fills out[i] for subjects[i]. Each slot is written by exactly
// one worker so the output order never depends on scheduling.
func (e *Engine) evaluateBatch(subjects []segment.Subject, out []*segment.OverlapCase, buckets []segment.Bucket, threshold float64) {
	workers := min(e.opts.Workers, len(subjects))
	if workers <= 1 {
		for i := range subjects {
			out[i] = e.evaluateSubject(subjects[i], buckets, threshold)
		}
		return
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				out[i] = e.evaluateSubject(subjects[i], buckets, threshold)
			}
		}()
	}
	for i := range subjects {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

func (e *Engine) evaluateSubject(s segment.Subject, buckets []segment.Bucket, threshold float64) *segment.OverlapCase {
	if s.Assigned() {
		return nil
	}

	var matches []segment.EligibleMatch
	for _, b := range buckets {
		if !segment.Matches(s, b.Criteria) {
			continue
		}
		score := e.scorer.Score(s, b)
		if score < threshold {
			continue
		}
		matches = append(matches, segment.EligibleMatch{
			BucketID:   b.ID,
			BucketName: b.Name,
			Score:      score,
			Criteria:   b.Criteria,
		})
	}
	if len(matches) < 2 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = displayName(m.BucketName, m.BucketID)
	}

	return &segment.OverlapCase{
		Subject:               s,
		Matches:               matches,
		RecommendedBucketID:   matches[0].BucketID,
		RecommendedBucketName: matches[0].BucketName,
		ConflictReason:        fmt.Sprintf("eligible for %d buckets: %s", len(matches), strings.Join(names, ", ")),
		Priority:              priority(s, matches),
	}
}

// priority ranks overlaps for attention: valuable subjects, crowded candidate
// sets and close calls come first.
func priority(s segment.Subject, matches []segment.EligibleMatch) float64 {
	revenue := math.Min(1, s.TotalRevenue/100000)
	crowding := math.Min(1, float64(len(matches))/5)
	gap := 0.0
	if len(matches) >= 2 {
		gap = matches[0].Score - matches[1].Score
	}
	return 0.4*revenue + 0.3*crowding + 0.3*(1-math.Min(1, gap))
}

func validateInputs(subjects []segment.Subject, buckets []segment.Bucket) error {
	if len(subjects) == 0 {
		return fmt.Errorf("%w: no subjects provided", ErrInvalidInput)
	}
	if len(buckets) == 0 {
		return fmt.Errorf("%w: no buckets provided", ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(subjects))
	for i, s := range subjects {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: subject at index %d: %w", ErrInvalidInput, i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate subject id %q", ErrInvalidInput, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	seen = make(map[string]struct{}, len(buckets))
	for i, b := range buckets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bucket at index %d: %w", i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate bucket id %q", ErrInvalidInput, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
