package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// Bundle is the display-ready view of a set of overlaps.
type Bundle struct {
	Summary         PresentSummary       `json:"summary"`
	Conflicts       []ConflictView       `json:"conflicts"`
	Recommendations []RecommendationView `json:"recommendations"`
	Metadata        PresentMetadata      `json:"metadata"`
}

type PresentSummary struct {
	TotalConflicts            int     `json:"total_conflicts"`
	AverageBucketsPerConflict float64 `json:"average_buckets_per_conflict"`
	HighValueConflicts        int     `json:"high_value_conflicts"`
	HighValuePercentage       float64 `json:"high_value_percentage"`
}

type ConflictView struct {
	SubjectID      string   `json:"subject_id"`
	SubjectName    string   `json:"subject_name"`
	Revenue        string   `json:"revenue"`
	Volume         string   `json:"volume"`
	UnitPrice      string   `json:"unit_price"`
	Margin         string   `json:"margin"`
	Buckets        []string `json:"buckets"`
	Priority       string   `json:"priority"`
	ConflictReason string   `json:"conflict_reason"`
	HighValue      bool     `json:"high_value"`
}

type RecommendationView struct {
	SubjectID    string   `json:"subject_id"`
	SubjectName  string   `json:"subject_name"`
	BucketID     string   `json:"bucket_id"`
	BucketName   string   `json:"bucket_name"`
	MatchScore   string   `json:"match_score"`
	Confidence   string   `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type PresentMetadata struct {
	GeneratedAt         time.Time      `json:"generated_at"`
	MatchThreshold      float64        `json:"match_threshold"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	Strategies          []StrategyInfo `json:"strategies"`
}

// Present reshapes overlaps for display. Overlaps that have not been through
// Recommend are enriched on the fly; no decision is made.
func (e *Engine) Present(overlaps []segment.OverlapCase) Bundle {
	b := Bundle{
		Conflicts:       make([]ConflictView, 0, len(overlaps)),
		Recommendations: make([]RecommendationView, 0, len(overlaps)),
		Metadata: PresentMetadata{
			GeneratedAt:         e.now().UTC(),
			MatchThreshold:      e.opts.MatchThreshold,
			ConfidenceThreshold: e.opts.ConfidenceThreshold,
			Strategies:          Strategies(),
		},
	}

	var bucketTotal int
	for _, oc := range overlaps {
		if !oc.Enriched {
			oc = e.enrich(oc)
		}
		bucketTotal += len(oc.Matches)
		highValue := oc.Subject.TotalRevenue >= highRevenue
		if highValue {
			b.Summary.HighValueConflicts++
		}

		buckets := make([]string, len(oc.Matches))
		for i, m := range oc.Matches {
			buckets[i] = fmt.Sprintf("%s (%s)", displayName(m.BucketName, m.BucketID), formatPercent(m.Score))
		}
		b.Conflicts = append(b.Conflicts, ConflictView{
			SubjectID:      oc.Subject.ID,
			SubjectName:    oc.Subject.Name,
			Revenue:        formatCurrency(oc.Subject.TotalRevenue),
			Volume:         formatUnits(oc.Subject.TotalVolume),
			UnitPrice:      formatCurrency(oc.Subject.AverageUnitPrice),
			Margin:         fmt.Sprintf("%.1f%%", oc.Subject.ProfitMargin),
			Buckets:        buckets,
			Priority:       formatPercent(oc.Priority),
			ConflictReason: oc.ConflictReason,
			HighValue:      highValue,
		})

		var alts []string
		for _, a := range oc.Alternatives {
			alts = append(alts, fmt.Sprintf("%s (%s, %s)", displayName(a.BucketName, a.BucketID), formatPercent(a.Score), a.Reason))
		}
		b.Recommendations = append(b.Recommendations, RecommendationView{
			SubjectID:    oc.Subject.ID,
			SubjectName:  oc.Subject.Name,
			BucketID:     oc.RecommendedBucketID,
			BucketName:   oc.RecommendedBucketName,
			MatchScore:   formatPercent(topScore(oc)),
			Confidence:   formatPercent(oc.Confidence),
			Reasoning:    oc.Reasoning,
			Alternatives: alts,
		})
	}

	b.Summary.TotalConflicts = len(overlaps)
	if len(overlaps) > 0 {
		b.Summary.AverageBucketsPerConflict = math.Round(float64(bucketTotal)/float64(len(overlaps))*100) / 100
		b.Summary.HighValuePercentage = math.Round(float64(b.Summary.HighValueConflicts)/float64(len(overlaps))*1000) / 10
	}
	return b
}

func topScore(oc segment.OverlapCase) float64 {
	if len(oc.Matches) == 0 {
		return 0
	}
	return oc.Matches[0].Score
}

var numberPrinter = message.NewPrinter(language.English)

// formatCurrency renders v as dollars with two decimals and thousands
// separators, e.g. "$78,000.00".
func formatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	_, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + "$" + numberPrinter.Sprintf("%d", d.IntPart()) + "." + frac
}

// formatUnits renders a quantity rounded to whole units, e.g. "1,250 units".
func formatUnits(v float64) string {
	return numberPrinter.Sprintf("%d units", decimal.NewFromFloat(v).Round(0).IntPart())
}

// formatPercent renders a ratio in [0, 1] as a percentage, e.g. "87.0%".
func formatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
