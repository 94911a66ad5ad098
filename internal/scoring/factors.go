package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// FactorResult captures one factor's contribution to the total score.
type FactorResult struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Reason   string  `json:"reason"`
}

// PairContext bundles all inputs needed to score a single subject–bucket pair.
type PairContext struct {
	Subject  segment.Subject
	Criteria segment.Criteria
	Now      time.Time
}

const (
	revenueBaseline  = 100000.0
	deliveryBaseline = 50.0
	deliveryBonusCap = 0.2
	recentWindow     = 30 * 24 * time.Hour
	activeWindow     = 90 * 24 * time.Hour
	recentBonus      = 0.10
	activeBonus      = 0.05
)

// --- Individual factor calculators ---

// VolumeFactor scores the subject's volume against the bucket's volume range.
func VolumeFactor(pc *PairContext, c Curve) FactorResult {
	return rangeFactor("volume", pc.Subject.TotalVolume, pc.Criteria.Volume, c)
}

// PriceFactor scores the subject's average unit price against the price range.
func PriceFactor(pc *PairContext, c Curve) FactorResult {
	return rangeFactor("price", pc.Subject.AverageUnitPrice, pc.Criteria.Price, c)
}

// MarginFactor scores the subject's profit margin against the margin range.
func MarginFactor(pc *PairContext, c Curve) FactorResult {
	return rangeFactor("margin", pc.Subject.ProfitMargin, pc.Criteria.Margin, c)
}

func rangeFactor(name string, value float64, r segment.Range, c Curve) FactorResult {
	score := c.Fit(value, r)
	var reason string
	switch {
	case r.Unbounded():
		reason = "no constraint"
	case r.Min != nil && value < *r.Min:
		reason = fmt.Sprintf("below minimum %g", *r.Min)
	case r.Max != nil && value > *r.Max:
		reason = fmt.Sprintf("above maximum %g", *r.Max)
	case r.Max != nil && score < 1.0:
		reason = fmt.Sprintf("near maximum %g", *r.Max)
	default:
		reason = "within range"
	}
	return FactorResult{Name: name, Score: score, Reason: reason}
}

// BusinessValueFactor rewards revenue, delivery frequency and recent activity.
// It depends on the subject alone.
func BusinessValueFactor(pc *PairContext) FactorResult {
	s := pc.Subject
	revenue := math.Min(1.0, s.TotalRevenue/revenueBaseline)
	deliveries := math.Min(deliveryBonusCap, float64(s.DeliveryCount)/deliveryBaseline*deliveryBonusCap)

	recency := 0.0
	reason := "inactive"
	if !s.LastActivity.IsZero() {
		since := pc.Now.Sub(s.LastActivity)
		switch {
		case since <= recentWindow:
			recency = recentBonus
			reason = "active within 30 days"
		case since <= activeWindow:
			recency = activeBonus
			reason = "active within 90 days"
		}
	}

	score := clamp(revenue+deliveries+recency, 0, 1)
	return FactorResult{Name: "value", Score: score, Reason: reason}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
