// internal/abtest/significance.go
// Package abtest evaluates two-variant experiments and assigns leads to
// variants.
package abtest

import (
	"math"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/models"
)

// SignificanceLevel is the p-value threshold for a significant result.
const SignificanceLevel = 0.05

// Abramowitz and Stegun 7.1.26 coefficients.
const (
	erfP  = 0.3275911
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
)

// erf approximates the error function with absolute error below 1.5e-7.
func erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}
	t := 1 / (1 + erfP*x)
	y := 1 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// normalCDF is the standard normal cumulative distribution.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + erf(z/math.Sqrt2))
}

// Evaluate runs a pooled two-proportion z-test between the first (control)
// and second variant. Any other variant count is rejected.
func Evaluate(test *models.ABTest) (models.ABTestResult, error) {
	if len(test.Variants) != 2 {
		return models.ABTestResult{}, apperrors.NewUnsupportedVariantCountError(len(test.Variants))
	}
	control, variant := test.Variants[0], test.Variants[1]

	result := models.ABTestResult{
		TestID:      test.ID,
		ControlID:   control.ID,
		VariantID:   variant.ID,
		ControlRate: control.ConversionRate(),
		VariantRate: variant.ConversionRate(),
		PValue:      1,
	}
	if result.ControlRate > 0 {
		result.Uplift = (result.VariantRate - result.ControlRate) / result.ControlRate * 100
	}

	visitors := control.Visitors + variant.Visitors
	if control.Visitors == 0 || variant.Visitors == 0 {
		return result, nil
	}
	pooled := float64(control.Conversions+variant.Conversions) / float64(visitors)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(control.Visitors) + 1/float64(variant.Visitors)))
	if se == 0 || math.IsNaN(se) {
		return result, nil
	}

	result.ZScore = math.Abs(result.ControlRate-result.VariantRate) / se
	result.PValue = 2 * (1 - normalCDF(result.ZScore))
	if result.PValue < 0 {
		result.PValue = 0
	}
	result.Confidence = (1 - result.PValue) * 100
	result.Significant = result.PValue < SignificanceLevel
	if result.Significant {
		if result.VariantRate > result.ControlRate {
			result.WinningVariant = variant.ID
		} else {
			result.WinningVariant = control.ID
		}
	}
	return result, nil
}
