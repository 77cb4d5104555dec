// internal/abtest/significance_test.go
package abtest

import (
	"math"
	"testing"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoVariantTest(cConv, cVis, vConv, vVis int) *models.ABTest {
	return &models.ABTest{
		ID: "subject-line",
		Variants: []models.Variant{
			{ID: "control", Visitors: cVis, Conversions: cConv},
			{ID: "variant", Visitors: vVis, Conversions: vConv},
		},
	}
}

func TestErfApproximation(t *testing.T) {
	for _, x := range []float64{-3, -1.2, -0.5, 0, 0.1, 0.7, 1.5, 2.5, 4} {
		assert.InDelta(t, math.Erf(x), erf(x), 1.5e-7, "x=%v", x)
	}
}

func TestEvaluate_SignificantUplift(t *testing.T) {
	res, err := Evaluate(twoVariantTest(100, 1000, 130, 1000))
	require.NoError(t, err)

	assert.InDelta(t, 0.10, res.ControlRate, 1e-12)
	assert.InDelta(t, 0.13, res.VariantRate, 1e-12)
	assert.InDelta(t, 30.0, res.Uplift, 1e-9)
	assert.InDelta(t, 2.10, res.ZScore, 0.01)
	assert.InDelta(t, 0.0355, res.PValue, 0.001)
	assert.Less(t, res.PValue, SignificanceLevel)
	assert.True(t, res.Significant)
	assert.Equal(t, "variant", res.WinningVariant)
	assert.InDelta(t, (1-res.PValue)*100, res.Confidence, 1e-9)
}

func TestEvaluate_NotSignificant(t *testing.T) {
	res, err := Evaluate(twoVariantTest(100, 1000, 102, 1000))
	require.NoError(t, err)

	assert.InDelta(t, 0.88, res.PValue, 0.01)
	assert.False(t, res.Significant)
	assert.Empty(t, res.WinningVariant)
}

func TestEvaluate_ControlWins(t *testing.T) {
	res, err := Evaluate(twoVariantTest(150, 1000, 100, 1000))
	require.NoError(t, err)
	assert.True(t, res.Significant)
	assert.Equal(t, "control", res.WinningVariant)
	assert.Less(t, res.Uplift, 0.0)
}

func TestEvaluate_DegenerateData(t *testing.T) {
	tests := []struct {
		name string
		test *models.ABTest
	}{
		{"no visitors", twoVariantTest(0, 0, 0, 0)},
		{"one side empty", twoVariantTest(0, 0, 10, 100)},
		{"no conversions anywhere", twoVariantTest(0, 500, 0, 500)},
		{"everyone converts", twoVariantTest(500, 500, 500, 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(tt.test)
			require.NoError(t, err)
			assert.Equal(t, 1.0, res.PValue)
			assert.False(t, res.Significant)
			assert.Empty(t, res.WinningVariant)
			assert.False(t, math.IsNaN(res.Uplift))
		})
	}
}

func TestEvaluate_RejectsOtherVariantCounts(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		test := &models.ABTest{ID: "t", Variants: make([]models.Variant, n)}
		_, err := Evaluate(test)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsupportedVariants), "n=%d", n)
	}
}
