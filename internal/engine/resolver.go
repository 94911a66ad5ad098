package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Arbiter/internal/metrics"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// AutoResolve picks one bucket per overlap with the named strategy and
// returns the decision batch. The batch is rejected as a whole when a
// subject would receive two decisions. Recording to the journal is
// best-effort and never fails the call.
func (e *Engine) AutoResolve(ctx context.Context, overlaps []segment.OverlapCase, strategyName string) ([]segment.Decision, error) {
	strategy, err := ParseStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	if !strategy.AutoResolvable() {
		return nil, fmt.Errorf("%w: use a manual decision for each overlap", ErrManualStrategy)
	}
	if len(overlaps) == 0 {
		return nil, nil
	}

	start := time.Now()
	def := strategyTable[strategy]
	decisions := make([]segment.Decision, 0, len(overlaps))
	for i := range overlaps {
		if i%e.opts.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		oc := &overlaps[i]
		if len(oc.Matches) == 0 {
			return nil, fmt.Errorf("%w: overlap for subject %q has no eligible buckets", ErrInvalidInput, oc.Subject.ID)
		}
		chosen := def.sel(e.scorer, oc)
		m := oc.Matches[chosen]
		reason := fmt.Sprintf("%s (%s match)", def.reason, formatPercent(m.Score))
		decisions = append(decisions, e.buildDecision(oc, chosen, strategy, reason))
	}

	if err := checkUnique(decisions); err != nil {
		e.logger.Error("rejecting decision batch", "strategy", strategy.String(), "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	e.setResolutionTime(elapsed)
	metrics.ResolutionDuration.WithLabelValues(strategy.String()).Observe(elapsed.Seconds())
	metrics.DecisionsRecorded.WithLabelValues(strategy.String()).Add(float64(len(decisions)))

	e.record(ctx, decisions, elapsed)
	e.logger.Info("overlaps resolved",
		"strategy", strategy.String(),
		"decisions", len(decisions),
		"duration_ms", elapsed.Milliseconds(),
	)
	return decisions, nil
}

// ManualDecision records an explicit reviewer choice for one overlap. The
// bucket must be one of the overlap's candidates.
func (e *Engine) ManualDecision(ctx context.Context, oc segment.OverlapCase, bucketID, reason string) (segment.Decision, error) {
	chosen := -1
	for i, m := range oc.Matches {
		if m.BucketID == bucketID {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return segment.Decision{}, fmt.Errorf("%w: bucket %q is not a candidate for subject %q", ErrInvalidInput, bucketID, oc.Subject.ID)
	}
	if strings.TrimSpace(reason) == "" {
		reason = strategyTable[Manual].reason
	}

	d := e.buildDecision(&oc, chosen, Manual, reason)
	metrics.DecisionsRecorded.WithLabelValues(Manual.String()).Inc()
	e.record(ctx, []segment.Decision{d}, 0)
	e.logger.Info("manual decision recorded", "subject_id", d.SubjectID, "bucket_id", d.BucketID)
	return d, nil
}

func (e *Engine) buildDecision(oc *segment.OverlapCase, chosen int, strategy Strategy, reason string) segment.Decision {
	m := oc.Matches[chosen]
	conf := oc.Confidence
	if !oc.Enriched {
		conf = confidence(oc.Matches)
	}
	return segment.Decision{
		ID:           uuid.New(),
		SubjectID:    oc.Subject.ID,
		SubjectName:  oc.Subject.Name,
		BucketID:     m.BucketID,
		BucketName:   m.BucketName,
		Strategy:     strategy.String(),
		MatchScore:   m.Score,
		Confidence:   conf,
		Reason:       reason,
		DecidedAt:    e.now().UTC(),
		Alternatives: alternatives(oc.Matches, chosen, decisionAltsLimit),
	}
}

func checkUnique(decisions []segment.Decision) error {
	seen := make(map[string]struct{}, len(decisions))
	for _, d := range decisions {
		if _, dup := seen[d.SubjectID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateDecision, d.SubjectID)
		}
		seen[d.SubjectID] = struct{}{}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, decisions []segment.Decision, elapsed time.Duration) {
	entries := e.journal.Record(decisions, e.scorer.Weights(), elapsed, e.now().UTC())

	summary := e.journal.Summarize()
	e.logger.Debug("decision journal",
		"entries", summary.Entries,
		"most_used_strategy", summary.MostUsedStrategy,
		"avg_confidence", summary.AverageConfidence,
	)

	if e.sink == nil {
		return
	}
	if err := e.sink.AppendJournal(ctx, entries); err != nil {
		metrics.JournalSinkFailures.Add(float64(len(entries)))
		e.logger.Warn("journal sink append failed", "entries", len(entries), "error", err)
	}
}
