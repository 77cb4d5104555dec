// internal/attribution/calculator.go
// Package attribution distributes conversion credit over a lead's ordered
// touchpoints under the first-touch, last-touch, linear, time-decay and
// position-based models.
package attribution

import (
	"math"
	"time"

	"lead-automation/internal/models"
)

// DefaultHalfLife is the age at which a touchpoint's time-decay weight halves.
const DefaultHalfLife = 7 * 24 * time.Hour

const (
	positionEndpointShare = 40.0
	positionInteriorShare = 20.0
)

type Calculator struct {
	halfLife time.Duration
	now      func() time.Time
}

// NewCalculator returns a calculator using halfLife for time decay; a
// non-positive value selects DefaultHalfLife.
func NewCalculator(halfLife time.Duration) *Calculator {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return &Calculator{halfLife: halfLife, now: time.Now}
}

// ComputeAttribution evaluates all five models at the current time.
func (c *Calculator) ComputeAttribution(touchpoints []models.Touchpoint, conversionValue float64) models.AttributionModel {
	return Compute(touchpoints, conversionValue, c.halfLife, c.now())
}

// Compute is the pure form of ComputeAttribution. An empty touchpoint list
// yields empty distributions.
func Compute(touchpoints []models.Touchpoint, conversionValue float64, halfLife time.Duration, now time.Time) models.AttributionModel {
	m := models.AttributionModel{ConversionValue: conversionValue, ComputedAt: now}
	n := len(touchpoints)
	if n == 0 {
		return m
	}

	first := make([]float64, n)
	first[0] = 1
	last := make([]float64, n)
	last[n-1] = 1

	m.FirstTouch = allocate(touchpoints, first, conversionValue)
	m.LastTouch = allocate(touchpoints, last, conversionValue)
	m.Linear = allocate(touchpoints, uniform(n), conversionValue)
	m.TimeDecay = allocate(touchpoints, decayWeights(touchpoints, halfLife, now), conversionValue)
	m.PositionBased = allocate(touchpoints, positionWeights(n), conversionValue)
	return m
}

// allocate normalizes weights into percentage credits and value shares.
func allocate(touchpoints []models.Touchpoint, weights []float64, value float64) []models.CreditAllocation {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		weights = uniform(len(touchpoints))
		total = float64(len(touchpoints))
	}

	out := make([]models.CreditAllocation, len(touchpoints))
	for i, tp := range touchpoints {
		share := weights[i] / total
		out[i] = models.CreditAllocation{
			TouchpointID: tp.ID,
			Credit:       share * 100,
			Value:        share * value,
		}
	}
	return out
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// decayWeights gives each touchpoint 0.5^(age/halfLife). Touchpoints
// stamped after now count as age zero.
func decayWeights(touchpoints []models.Touchpoint, halfLife time.Duration, now time.Time) []float64 {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	w := make([]float64, len(touchpoints))
	for i, tp := range touchpoints {
		age := now.Sub(tp.Timestamp)
		if age < 0 {
			age = 0
		}
		w[i] = math.Pow(0.5, age.Hours()/halfLife.Hours())
	}
	return w
}

// positionWeights returns percentages: 40 to each endpoint and 20 split
// over the interior. With two touchpoints there is no interior, so the 20
// is shared by the endpoints and the split is even.
func positionWeights(n int) []float64 {
	w := make([]float64, n)
	switch n {
	case 1:
		w[0] = 100
	case 2:
		// Deliberately 50/50 rather than 40/40 so the credits still sum to 100.
		w[0], w[1] = 50, 50
	default:
		w[0] = positionEndpointShare
		w[n-1] = positionEndpointShare
		interior := positionInteriorShare / float64(n-2)
		for i := 1; i < n-1; i++ {
			w[i] = interior
		}
	}
	return w
}
