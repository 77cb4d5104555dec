// internal/attribution/calculator_test.go
package attribution

import (
	"fmt"
	"testing"
	"time"

	"lead-automation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// touchpointsAged builds touchpoints in chronological order with the given
// ages in days relative to evalTime.
func touchpointsAged(ages ...float64) []models.Touchpoint {
	out := make([]models.Touchpoint, len(ages))
	for i, a := range ages {
		out[i] = models.Touchpoint{
			ID:        fmt.Sprintf("tp-%d", i),
			Type:      models.TouchpointPageView,
			Timestamp: evalTime.Add(-time.Duration(a * 24 * float64(time.Hour))),
		}
	}
	return out
}

func sums(allocs []models.CreditAllocation) (credit, value float64) {
	for _, a := range allocs {
		credit += a.Credit
		value += a.Value
	}
	return
}

func TestCompute_DistributionsSumToTotals(t *testing.T) {
	sequences := [][]float64{
		{0},
		{3, 0},
		{10, 5, 1},
		{30, 20, 14, 7, 3, 1, 0},
	}
	for _, ages := range sequences {
		m := Compute(touchpointsAged(ages...), 1234.56, DefaultHalfLife, evalTime)
		for _, mt := range models.AttributionModelTypes {
			t.Run(fmt.Sprintf("%s/n=%d", mt, len(ages)), func(t *testing.T) {
				allocs := m.Distribution(mt)
				require.Len(t, allocs, len(ages))
				credit, value := sums(allocs)
				assert.InDelta(t, 100, credit, 1e-9)
				assert.InDelta(t, 1234.56, value, 1e-6)
			})
		}
	}
}

func TestCompute_EndpointModels(t *testing.T) {
	m := Compute(touchpointsAged(5, 3, 1), 300, DefaultHalfLife, evalTime)

	assert.Equal(t, 100.0, m.FirstTouch[0].Credit)
	assert.Equal(t, 300.0, m.FirstTouch[0].Value)
	assert.Zero(t, m.FirstTouch[2].Credit)

	assert.Equal(t, 100.0, m.LastTouch[2].Credit)
	assert.Equal(t, "tp-2", m.LastTouch[2].TouchpointID)
	assert.Zero(t, m.LastTouch[0].Value)
}

func TestCompute_LinearScenario(t *testing.T) {
	m := Compute(touchpointsAged(2, 1, 0), 250, DefaultHalfLife, evalTime)
	for _, a := range m.Linear {
		assert.InDelta(t, 83.33, a.Value, 0.01)
		assert.InDelta(t, 100.0/3, a.Credit, 1e-9)
	}
}

func TestCompute_TimeDecayFavoursRecency(t *testing.T) {
	m := Compute(touchpointsAged(21, 14, 7, 7, 0), 100, DefaultHalfLife, evalTime)
	for i := 1; i < len(m.TimeDecay); i++ {
		assert.GreaterOrEqual(t, m.TimeDecay[i].Credit, m.TimeDecay[i-1].Credit)
	}
	// One half-life apart means half the weight.
	assert.InDelta(t, m.TimeDecay[4].Credit/2, m.TimeDecay[2].Credit, 1e-9)
	assert.InDelta(t, m.TimeDecay[2].Credit, m.TimeDecay[3].Credit, 1e-9)
}

func TestCompute_TimeDecayFutureTimestampCountsAsNow(t *testing.T) {
	tps := touchpointsAged(0, -2)
	m := Compute(tps, 100, DefaultHalfLife, evalTime)
	assert.InDelta(t, 50, m.TimeDecay[0].Credit, 1e-9)
	assert.InDelta(t, 50, m.TimeDecay[1].Credit, 1e-9)
}

func TestCompute_PositionBased(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected []float64
	}{
		{"single touchpoint", 1, []float64{100}},
		{"two touchpoints split evenly", 2, []float64{50, 50}},
		{"three touchpoints", 3, []float64{40, 20, 40}},
		{"five touchpoints", 5, []float64{40, 20.0 / 3, 20.0 / 3, 20.0 / 3, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ages := make([]float64, tt.n)
			m := Compute(touchpointsAged(ages...), 100, DefaultHalfLife, evalTime)
			require.Len(t, m.PositionBased, tt.n)
			for i, want := range tt.expected {
				assert.InDelta(t, want, m.PositionBased[i].Credit, 1e-9)
			}
		})
	}
}

func TestCompute_EmptyTouchpoints(t *testing.T) {
	m := Compute(nil, 500, DefaultHalfLife, evalTime)
	assert.True(t, m.Empty())
	for _, mt := range models.AttributionModelTypes {
		assert.Empty(t, m.Distribution(mt))
	}
	assert.Equal(t, 500.0, m.ConversionValue)
}

func TestCalculator_CustomHalfLife(t *testing.T) {
	c := NewCalculator(24 * time.Hour)
	c.now = func() time.Time { return evalTime }

	m := c.ComputeAttribution(touchpointsAged(1, 0), 100)
	assert.InDelta(t, 100.0/3, m.TimeDecay[0].Credit, 1e-9)
	assert.InDelta(t, 200.0/3, m.TimeDecay[1].Credit, 1e-9)

	assert.Equal(t, DefaultHalfLife, NewCalculator(0).halfLife)
}
