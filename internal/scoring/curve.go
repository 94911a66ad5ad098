package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

// ErrInvalidCurve is returned when a factor curve cannot keep scores in [0, 1].
var ErrInvalidCurve = errors.New("invalid scoring curve")

// Curve shapes a range-fit factor: a bonus for clearing the minimum and a
// multiplicative penalty for sitting close to the maximum.
type Curve struct {
	// BonusRange is the distance above the minimum at which the bonus
	// saturates. With RelativeBonus it is a fraction of the minimum,
	// otherwise an absolute distance in the attribute's unit.
	BonusRange    float64 `json:"bonus_range" yaml:"bonus_range"`
	RelativeBonus bool    `json:"relative_bonus" yaml:"relative_bonus"`
	BonusCap      float64 `json:"bonus_cap" yaml:"bonus_cap"`
	// PenaltyFloor is the multiplier applied when the value sits on the maximum.
	PenaltyFloor float64 `json:"penalty_floor" yaml:"penalty_floor"`
}

// Curves groups the curve of each bounded dimension.
type Curves struct {
	Volume Curve `json:"volume" yaml:"volume"`
	Price  Curve `json:"price" yaml:"price"`
	Margin Curve `json:"margin" yaml:"margin"`
}

// DefaultCurves returns the standard bonus/penalty shapes.
//
//	volume: +0.2 at 50% above min, floor 0.80 at max
//	price:  +0.15 at 30% above min, floor 0.90 at max
//	margin: +0.3 at 20 points above min, floor 0.95 at max
func DefaultCurves() Curves {
	return Curves{
		Volume: Curve{BonusRange: 0.5, RelativeBonus: true, BonusCap: 0.2, PenaltyFloor: 0.8},
		Price:  Curve{BonusRange: 0.3, RelativeBonus: true, BonusCap: 0.15, PenaltyFloor: 0.9},
		Margin: Curve{BonusRange: 20, RelativeBonus: false, BonusCap: 0.3, PenaltyFloor: 0.95},
	}
}

// Validate rejects curves that would produce scores outside [0, 1].
func (c Curve) Validate() error {
	if c.BonusRange <= 0 || math.IsNaN(c.BonusRange) {
		return fmt.Errorf("bonus range must be positive, got %f", c.BonusRange)
	}
	if c.BonusCap < 0 || c.BonusCap > 1 {
		return fmt.Errorf("bonus cap must be within [0, 1], got %f", c.BonusCap)
	}
	if c.PenaltyFloor < 0 || c.PenaltyFloor > 1 {
		return fmt.Errorf("penalty floor must be within [0, 1], got %f", c.PenaltyFloor)
	}
	return nil
}

// Validate checks every dimension's curve.
func (c Curves) Validate() error {
	curves := []struct {
		name  string
		curve Curve
	}{
		{"volume", c.Volume},
		{"price", c.Price},
		{"margin", c.Margin},
	}
	for _, d := range curves {
		if err := d.curve.Validate(); err != nil {
			return fmt.Errorf("%w: %s curve: %v", ErrInvalidCurve, d.name, err)
		}
	}
	return nil
}

// Fit scores value against r.
//
// The running score starts at 1.0 and takes the bonus, capped at 1.0; the
// ceiling penalty is applied to the capped score so that proximity to the
// maximum always lowers the fit.
func (c Curve) Fit(value float64, r segment.Range) float64 {
	if r.Unbounded() {
		return 1.0
	}

	score := 1.0
	if r.Min != nil {
		lower := *r.Min
		if value < lower {
			return 0
		}
		score = math.Min(1.0, score+c.bonus(value, lower))
	}

	if r.Max != nil {
		score *= c.ceilingMultiplier(value, *r.Max)
	}

	return clamp(score, 0, 1)
}

func (c Curve) bonus(value, lower float64) float64 {
	span := c.BonusRange
	if c.RelativeBonus {
		span = c.BonusRange * lower
	}
	if span <= 0 {
		// A zero minimum leaves no relative span; any clearance earns the full bonus.
		if value > lower {
			return c.BonusCap
		}
		return 0
	}
	return math.Min(c.BonusCap, (value-lower)/span*c.BonusCap)
}

func (c Curve) ceilingMultiplier(value, upper float64) float64 {
	if upper == 0 {
		return c.PenaltyFloor
	}
	room := clamp((upper-value)/math.Abs(upper), 0, 1)
	return c.PenaltyFloor + (1-c.PenaltyFloor)*room
}
