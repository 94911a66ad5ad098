package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weight set cannot be used for scoring.
var ErrInvalidWeights = errors.New("invalid scoring weights")

// WeightSet defines the relative importance of each scoring factor.
// All weights must sum to 1.0 (±0.001 tolerance).
type WeightSet struct {
	Volume float64 `json:"volume" yaml:"volume"`
	Price  float64 `json:"price" yaml:"price"`
	Margin float64 `json:"margin" yaml:"margin"`
	Value  float64 `json:"value" yaml:"value"`
}

// DefaultWeights returns the standard weight distribution.
func DefaultWeights() WeightSet {
	return WeightSet{
		Volume: 0.35,
		Price:  0.30,
		Margin: 0.25,
		Value:  0.10,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return w.Volume + w.Price + w.Margin + w.Value
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightSet) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("%w: weights sum to %.4f, must sum to 1.0", ErrInvalidWeights, w.Sum())
	}
	for name, v := range w.asMap() {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative %s weight: %f", ErrInvalidWeights, name, v)
		}
	}
	return nil
}

func (w WeightSet) asMap() map[string]float64 {
	return map[string]float64{
		"volume": w.Volume,
		"price":  w.Price,
		"margin": w.Margin,
		"value":  w.Value,
	}
}
