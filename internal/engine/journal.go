package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// JournalEntry is a decision together with the scoring configuration and
// timing it was made under.
type JournalEntry struct {
	Decision           segment.Decision  `json:"decision"`
	Weights            scoring.WeightSet `json:"weights"`
	RecordedAt         time.Time         `json:"recorded_at"`
	ResolutionDuration time.Duration     `json:"resolution_duration_ns"`
}

// JournalSink persists journal entries outside the process. Failures are
// logged by the engine and never surface to the resolving caller.
type JournalSink interface {
	AppendJournal(ctx context.Context, entries []JournalEntry) error
}

// JournalSummary is descriptive only; nothing in scoring reads it.
type JournalSummary struct {
	Entries                   int            `json:"entries"`
	MostUsedStrategy          string         `json:"most_used_strategy,omitempty"`
	StrategyCounts            map[string]int `json:"strategy_counts"`
	AverageConfidence         float64        `json:"average_confidence"`
	AverageResolutionDuration time.Duration  `json:"average_resolution_duration_ns"`
}

// Journal is a fixed-capacity ring buffer of decisions. Once full, each new
// entry overwrites the oldest.
type Journal struct {
	mu      sync.Mutex
	entries []JournalEntry
	next    int
	size    int
}

// NewJournal creates a journal holding at most capacity entries.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{entries: make([]JournalEntry, capacity)}
}

// Record appends one entry per decision and returns the entries written.
func (j *Journal) Record(decisions []segment.Decision, weights scoring.WeightSet, elapsed time.Duration, at time.Time) []JournalEntry {
	written := make([]JournalEntry, len(decisions))
	for i, d := range decisions {
		written[i] = JournalEntry{
			Decision:           d,
			Weights:            weights,
			RecordedAt:         at,
			ResolutionDuration: elapsed,
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, entry := range written {
		j.entries[j.next] = entry
		j.next = (j.next + 1) % len(j.entries)
		if j.size < len(j.entries) {
			j.size++
		}
	}
	return written
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Capacity returns the maximum number of retained entries.
func (j *Journal) Capacity() int {
	return len(j.entries)
}

// Entries returns all retained entries, oldest first.
func (j *Journal) Entries() []JournalEntry {
	return j.Recent(-1)
}

// Recent returns up to n of the newest entries, oldest first. A negative n
// returns everything.
func (j *Journal) Recent(n int) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n < 0 || n > j.size {
		n = j.size
	}
	out := make([]JournalEntry, n)
	start := j.next - n
	if start < 0 {
		start += len(j.entries)
	}
	for i := 0; i < n; i++ {
		out[i] = j.entries[(start+i)%len(j.entries)]
	}
	return out
}

// Summarize derives usage statistics. Ties for the most used strategy go to
// the one listed first in the catalogue.
func (j *Journal) Summarize() JournalSummary {
	entries := j.Entries()
	summary := JournalSummary{
		Entries:        len(entries),
		StrategyCounts: make(map[string]int),
	}
	if len(entries) == 0 {
		return summary
	}

	var confSum float64
	var durSum time.Duration
	for _, e := range entries {
		summary.StrategyCounts[e.Decision.Strategy]++
		confSum += e.Decision.Confidence
		durSum += e.ResolutionDuration
	}
	summary.AverageConfidence = confSum / float64(len(entries))
	summary.AverageResolutionDuration = durSum / time.Duration(len(entries))

	best := 0
	for _, name := range StrategyNames() {
		if c := summary.StrategyCounts[name]; c > best {
			best = c
			summary.MostUsedStrategy = name
		}
	}
	return summary
}
