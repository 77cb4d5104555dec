// internal/abtest/assign.go
package abtest

import (
	"hash/fnv"

	"lead-automation/internal/models"
)

// pickVariant maps a lead deterministically onto the test's variants in
// proportion to their weights. Variants with a non-positive weight are never
// picked unless no weight is positive, in which case all variants share
// traffic equally.
func pickVariant(test *models.ABTest, leadID string) string {
	if len(test.Variants) == 0 {
		return ""
	}
	var total float64
	for _, v := range test.Variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(test.ID + ":" + leadID))
	point := float64(h.Sum64()%10000) / 10000

	if total <= 0 {
		return test.Variants[int(point*float64(len(test.Variants)))].ID
	}
	var acc float64
	var last string
	for _, v := range test.Variants {
		if v.Weight <= 0 {
			continue
		}
		last = v.ID
		acc += v.Weight / total
		if point < acc {
			return v.ID
		}
	}
	// Rounding can leave acc just under 1.
	return last
}
