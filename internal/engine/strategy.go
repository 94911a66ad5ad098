package engine

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// Strategy is a named rule for picking one bucket among an overlap's candidates.
type Strategy int

const (
	BestFit Strategy = iota
	HighestValue
	VolumePriority
	MarginPriority
	Manual
)

// selectFunc returns the index of the chosen match. Matches are in descending
// score order; ties keep the earlier candidate.
type selectFunc func(sc *scoring.Scorer, oc *segment.OverlapCase) int

type strategyDef struct {
	name        string
	description string
	reason      string
	sel         selectFunc
}

var strategyTable = [...]strategyDef{
	BestFit: {
		name:        "BEST_FIT",
		description: "Assign the bucket with the highest composite match score",
		reason:      "highest composite match score",
		sel:         selectBestFit,
	},
	HighestValue: {
		name:        "HIGHEST_VALUE",
		description: "Weigh match score together with the subject's revenue and volume",
		reason:      "highest combined business value",
		sel:         selectHighestValue,
	},
	VolumePriority: {
		name:        "VOLUME_PRIORITY",
		description: "Assign the bucket whose volume range best fits the subject",
		reason:      "best volume fit",
		sel:         selectVolumePriority,
	},
	MarginPriority: {
		name:        "MARGIN_PRIORITY",
		description: "Assign the bucket whose margin range best fits the subject",
		reason:      "best margin fit",
		sel:         selectMarginPriority,
	},
	Manual: {
		name:        "MANUAL",
		description: "Leave the overlap for an explicit reviewer decision",
		reason:      "manual selection",
	},
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyTable) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyTable[s].name
}

// AutoResolvable reports whether the strategy can pick a bucket on its own.
func (s Strategy) AutoResolvable() bool {
	return s != Manual
}

// ParseStrategy maps a strategy name (case-insensitive) to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for i, def := range strategyTable {
		if def.name == want {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (valid strategies: %s)", ErrUnknownStrategy, name, strings.Join(StrategyNames(), ", "))
}

// StrategyNames lists every strategy name in catalogue order.
func StrategyNames() []string {
	names := make([]string, len(strategyTable))
	for i, def := range strategyTable {
		names[i] = def.name
	}
	return names
}

// StrategyInfo describes a strategy for catalogues and presentation.
type StrategyInfo struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	AutoResolvable bool   `json:"auto_resolvable"`
}

// Strategies returns the static strategy catalogue.
func Strategies() []StrategyInfo {
	out := make([]StrategyInfo, len(strategyTable))
	for i, def := range strategyTable {
		out[i] = StrategyInfo{
			Name:           def.name,
			Description:    def.description,
			AutoResolvable: Strategy(i).AutoResolvable(),
		}
	}
	return out
}

func selectBestFit(_ *scoring.Scorer, _ *segment.OverlapCase) int {
	return 0
}

func selectHighestValue(_ *scoring.Scorer, oc *segment.OverlapCase) int {
	s := oc.Subject
	return argmax(oc.Matches, func(m segment.EligibleMatch) float64 {
		return 0.6*m.Score + 0.25*(s.TotalRevenue/100000) + 0.15*(s.TotalVolume/1000)
	})
}

func selectVolumePriority(sc *scoring.Scorer, oc *segment.OverlapCase) int {
	return argmax(oc.Matches, func(m segment.EligibleMatch) float64 {
		return sc.VolumeScore(oc.Subject, m.Criteria)
	})
}

func selectMarginPriority(sc *scoring.Scorer, oc *segment.OverlapCase) int {
	return argmax(oc.Matches, func(m segment.EligibleMatch) float64 {
		return sc.MarginScore(oc.Subject, m.Criteria)
	})
}

func argmax(matches []segment.EligibleMatch, value func(segment.EligibleMatch) float64) int {
	best := 0
	bestValue := value(matches[0])
	for i := 1; i < len(matches); i++ {
		if v := value(matches[i]); v > bestValue {
			best, bestValue = i, v
		}
	}
	return best
}
