package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

const (
	highVolumeUnits   = 500.0
	premiumPrice      = 120.0
	strongMargin      = 25.0
	highRevenue       = 50000.0
	significantGap    = 0.10
	maxAlternatives   = 3
	decisionAltsLimit = 2
)

// Recommend returns enriched copies of the overlaps: confidence, reasoning
// and, below the confidence threshold, ranked alternatives. Match order is
// never changed and the input slice is not modified.
func (e *Engine) Recommend(overlaps []segment.OverlapCase) []segment.OverlapCase {
	out := make([]segment.OverlapCase, len(overlaps))
	for i, oc := range overlaps {
		out[i] = e.enrich(oc)
	}
	return out
}

func (e *Engine) enrich(oc segment.OverlapCase) segment.OverlapCase {
	oc.Matches = append([]segment.EligibleMatch(nil), oc.Matches...)
	if len(oc.Matches) == 0 {
		return oc
	}

	top := oc.Matches[0]
	oc.RecommendedBucketID = top.BucketID
	oc.RecommendedBucketName = top.BucketName
	oc.Confidence = confidence(oc.Matches)
	oc.Reasoning = reasoning(oc.Subject, oc.Matches)
	oc.Alternatives = nil
	if oc.Confidence < e.opts.ConfidenceThreshold {
		oc.Alternatives = alternatives(oc.Matches, 0, maxAlternatives)
	}
	oc.Enriched = true
	return oc
}

// confidence grows with the top score and with its lead over the runner-up.
func confidence(matches []segment.EligibleMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	top := matches[0].Score
	gap := 0.0
	if len(matches) > 1 {
		gap = top - matches[1].Score
	}
	c := math.Min(1, top) + math.Min(0.3, 2*gap)
	return math.Round(math.Max(0, math.Min(1, c))*1000) / 1000
}

func reasoning(s segment.Subject, matches []segment.EligibleMatch) string {
	var parts []string
	if s.TotalVolume >= highVolumeUnits {
		parts = append(parts, fmt.Sprintf("high volume customer (%s)", formatUnits(s.TotalVolume)))
	}
	if s.AverageUnitPrice >= premiumPrice {
		parts = append(parts, fmt.Sprintf("premium pricing (%s per unit)", formatCurrency(s.AverageUnitPrice)))
	}
	if s.ProfitMargin >= strongMargin {
		parts = append(parts, fmt.Sprintf("strong margin (%.1f%%)", s.ProfitMargin))
	}
	if s.TotalRevenue >= highRevenue {
		parts = append(parts, fmt.Sprintf("high revenue (%s)", formatCurrency(s.TotalRevenue)))
	}
	parts = append(parts, fmt.Sprintf("%s match", formatPercent(matches[0].Score)))
	if len(matches) > 1 && matches[0].Score-matches[1].Score >= significantGap {
		parts = append(parts, "significantly better than alternatives")
	}
	return strings.Join(parts, "; ")
}

// alternatives returns up to limit matches other than matches[chosen], in
// score order.
func alternatives(matches []segment.EligibleMatch, chosen, limit int) []segment.Alternative {
	var out []segment.Alternative
	for i, m := range matches {
		if i == chosen {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, segment.Alternative{
			BucketID:   m.BucketID,
			BucketName: m.BucketName,
			Score:      m.Score,
			Reason:     alternativeReason(m.Score),
		})
	}
	return out
}

func alternativeReason(score float64) string {
	switch {
	case score >= 0.8:
		return "excellent match"
	case score >= 0.6:
		return "good match"
	default:
		return "lower match but may have strategic value"
	}
}
