package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/config"
	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/hermes"
	"github.com/MikeSquared-Agency/Arbiter/internal/metrics"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
	"github.com/MikeSquared-Agency/Arbiter/internal/store"
)

// SweepResult summarises one pass over the unassigned subjects.
type SweepResult struct {
	Strategy  string        `json:"strategy"`
	Subjects  int           `json:"subjects"`
	Overlaps  int           `json:"overlaps"`
	Decisions int           `json:"decisions"`
	Duration  time.Duration `json:"duration_ns"`
}

type Broker struct {
	store  store.Store
	hermes hermes.Client
	engine *engine.Engine
	cfg    *config.Config
	logger *slog.Logger

	// sweepMu serialises sweeps so two passes never race on the same subjects.
	sweepMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, h hermes.Client, e *engine.Engine, cfg *config.Config, logger *slog.Logger) *Broker {
	return &Broker{
		store:  s,
		hermes: h,
		engine: e,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (b *Broker) Start(ctx context.Context) {
	if b.cfg.Sweep.Enabled && b.cfg.SweepInterval() > 0 {
		b.wg.Add(1)
		go b.sweepLoop(ctx)
	}
	if b.cfg.CacheResetInterval() > 0 {
		b.wg.Add(1)
		go b.maintenanceLoop(ctx)
	}
}

func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

func (b *Broker) sweepLoop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Sweep(ctx, ""); err != nil {
				b.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep loads every unassigned subject, detects and enriches overlaps,
// publishes them, and unless the strategy is MANUAL resolves and persists
// the decisions. An empty strategy uses the configured sweep strategy.
func (b *Broker) Sweep(ctx context.Context, strategyName string) (*SweepResult, error) {
	if strategyName == "" {
		strategyName = b.cfg.Sweep.Strategy
	}
	strategy, err := engine.ParseStrategy(strategyName)
	if err != nil {
		return nil, err
	}

	b.sweepMu.Lock()
	defer b.sweepMu.Unlock()

	start := time.Now()
	result := &SweepResult{Strategy: strategy.String()}

	if err := b.sweep(ctx, strategy, result); err != nil {
		metrics.SweepsCompleted.WithLabelValues("error").Inc()
		return nil, err
	}
	result.Duration = time.Since(start)

	outcome := "resolved"
	switch {
	case result.Overlaps == 0:
		outcome = "empty"
	case !strategy.AutoResolvable():
		outcome = "pending_review"
	}
	metrics.SweepsCompleted.WithLabelValues(outcome).Inc()

	b.publish(hermes.SubjectSweepCompleted, hermes.SweepCompletedEvent{
		Strategy:   result.Strategy,
		Subjects:   result.Subjects,
		Overlaps:   result.Overlaps,
		Decisions:  result.Decisions,
		DurationMs: float64(result.Duration) / float64(time.Millisecond),
		Timestamp:  time.Now().UTC(),
	})

	b.logger.Info("sweep completed",
		"strategy", result.Strategy,
		"outcome", outcome,
		"subjects", result.Subjects,
		"overlaps", result.Overlaps,
		"decisions", result.Decisions,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (b *Broker) sweep(ctx context.Context, strategy engine.Strategy, result *SweepResult) error {
	subjects, err := b.store.ListUnassignedSubjects(ctx, 0)
	if err != nil {
		return fmt.Errorf("list unassigned subjects: %w", err)
	}
	result.Subjects = len(subjects)
	if len(subjects) == 0 {
		return nil
	}

	buckets, err := b.store.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}
	if len(buckets) == 0 {
		b.logger.Warn("no buckets configured, skipping sweep", "subjects", len(subjects))
		return nil
	}

	overlaps, err := b.engine.DetectOverlaps(ctx, subjects, buckets)
	if err != nil {
		return fmt.Errorf("detect overlaps: %w", err)
	}
	result.Overlaps = len(overlaps)
	if len(overlaps) == 0 {
		return nil
	}

	overlaps = b.engine.Recommend(overlaps)
	for _, oc := range overlaps {
		b.publish(hermes.SubjectOverlapDetected(oc.Subject.ID), overlapEvent(oc))
	}

	if !strategy.AutoResolvable() {
		return nil
	}

	decisions, err := b.engine.AutoResolve(ctx, overlaps, strategy.String())
	if err != nil {
		return fmt.Errorf("resolve overlaps: %w", err)
	}
	if err := b.store.SaveDecisions(ctx, decisions); err != nil {
		if errors.Is(err, store.ErrSubjectAssigned) {
			b.logger.Warn("subject assigned during sweep, batch discarded", "error", err)
		}
		return fmt.Errorf("save decisions: %w", err)
	}
	result.Decisions = len(decisions)

	for _, d := range decisions {
		b.publish(hermes.SubjectDecisionRecorded(d.SubjectID), decisionEvent(d))
	}
	return nil
}

// PublishDecision announces a decision recorded outside a sweep, such as a
// manual review.
func (b *Broker) PublishDecision(d segment.Decision) {
	b.publish(hermes.SubjectDecisionRecorded(d.SubjectID), decisionEvent(d))
}

func (b *Broker) publish(subject string, data interface{}) {
	if b.hermes == nil {
		return
	}
	if err := b.hermes.Publish(subject, data); err != nil {
		b.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

// SetupSubscriptions registers the NATS resolve-request handler.
func (b *Broker) SetupSubscriptions() {
	if b.hermes == nil {
		return
	}

	err := b.hermes.Subscribe(hermes.SubjectResolveRequest, func(_ string, data []byte) {
		var req hermes.ResolveRequestEvent
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				b.logger.Warn("invalid resolve request event", "error", err)
				return
			}
		}
		b.logger.Info("sweep requested", "strategy", req.Strategy, "source", req.Source)
		if _, err := b.Sweep(context.Background(), req.Strategy); err != nil {
			b.logger.Error("requested sweep failed", "strategy", req.Strategy, "error", err)
		}
	})
	if err != nil {
		b.logger.Warn("failed to subscribe", "subject", hermes.SubjectResolveRequest, "error", err)
	}
}

func overlapEvent(oc segment.OverlapCase) hermes.OverlapDetectedEvent {
	ids := make([]string, len(oc.Matches))
	for i, m := range oc.Matches {
		ids[i] = m.BucketID
	}
	return hermes.OverlapDetectedEvent{
		SubjectID:           oc.Subject.ID,
		SubjectName:         oc.Subject.Name,
		BucketIDs:           ids,
		RecommendedBucketID: oc.RecommendedBucketID,
		Confidence:          oc.Confidence,
		Priority:            oc.Priority,
	}
}

func decisionEvent(d segment.Decision) hermes.DecisionRecordedEvent {
	return hermes.DecisionRecordedEvent{
		DecisionID: d.ID.String(),
		SubjectID:  d.SubjectID,
		BucketID:   d.BucketID,
		Strategy:   d.Strategy,
		MatchScore: d.MatchScore,
		Confidence: d.Confidence,
		Reason:     d.Reason,
		DecidedAt:  d.DecidedAt,
	}
}
