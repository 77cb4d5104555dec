// internal/abtest/service_test.go
package abtest

import (
	"context"
	"fmt"
	"testing"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/models"
	"lead-automation/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, tests ...*models.ABTest) (*Service, *memory.Store) {
	st := memory.New()
	for _, test := range tests {
		require.NoError(t, st.SaveTest(context.Background(), test))
	}
	return NewService(st, logger.NewTestLogger(t)), st
}

func TestAssign_IsStickyAndCountsVisitorsOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &models.ABTest{
		ID:       "cta",
		Variants: []models.Variant{{ID: "a", Weight: 50}, {ID: "b", Weight: 50}},
	})

	first, err := svc.Assign(ctx, "cta", "lead-1")
	require.NoError(t, err)
	again, err := svc.Assign(ctx, "cta", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	test, _ := st.GetTest(ctx, "cta")
	assert.Equal(t, 1, test.Variants[0].Visitors+test.Variants[1].Visitors)
	assert.Equal(t, models.ABTestRunning, test.Status)
}

func TestAssign_RespectsWeights(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &models.ABTest{
		ID:       "weighted",
		Variants: []models.Variant{{ID: "a", Weight: 0.9}, {ID: "b", Weight: 0.1}},
	})

	for i := 0; i < 1000; i++ {
		_, err := svc.Assign(ctx, "weighted", fmt.Sprintf("lead-%d", i))
		require.NoError(t, err)
	}
	test, _ := st.GetTest(ctx, "weighted")
	assert.InDelta(t, 900, test.Variants[0].Visitors, 60)
	assert.Equal(t, 1000, test.Variants[0].Visitors+test.Variants[1].Visitors)
}

func TestPickVariant_NonPositiveWeights(t *testing.T) {
	t.Run("never picked beside positive weights", func(t *testing.T) {
		test := &models.ABTest{
			ID: "mixed",
			Variants: []models.Variant{
				{ID: "a", Weight: 1.0 / 3},
				{ID: "b", Weight: 1.0 / 3},
				{ID: "c", Weight: 1.0 / 3},
				{ID: "off", Weight: 0},
			},
		}
		for i := 0; i < 5000; i++ {
			assert.NotEqual(t, "off", pickVariant(test, fmt.Sprintf("lead-%d", i)))
		}
	})

	t.Run("equal split when none is positive", func(t *testing.T) {
		test := &models.ABTest{
			ID:       "flat",
			Variants: []models.Variant{{ID: "a"}, {ID: "b", Weight: -1}},
		}
		seen := map[string]int{}
		for i := 0; i < 1000; i++ {
			seen[pickVariant(test, fmt.Sprintf("lead-%d", i))]++
		}
		assert.InDelta(t, 500, seen["a"], 80)
		assert.Equal(t, 1000, seen["a"]+seen["b"])
	})
}

func TestAssign_UnknownTest(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Assign(context.Background(), "missing", "lead-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTestNotFound))
}

func TestRecordConversion_CountsOncePerLead(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t,
		&models.ABTest{ID: "t1", Variants: []models.Variant{{ID: "a"}, {ID: "b"}}},
		&models.ABTest{ID: "t2", Variants: []models.Variant{{ID: "x"}, {ID: "y"}}},
	)
	variant, err := svc.Assign(ctx, "t1", "lead-1")
	require.NoError(t, err)

	n, err := svc.RecordConversion(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.RecordConversion(ctx, "lead-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	test, _ := st.GetTest(ctx, "t1")
	for _, v := range test.Variants {
		if v.ID == variant {
			assert.Equal(t, 1, v.Conversions)
		} else {
			assert.Zero(t, v.Conversions)
		}
	}
}

func TestGetResults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t,
		twoVariantTest(100, 1000, 130, 1000),
		&models.ABTest{ID: "three-way", Variants: make([]models.Variant, 3)},
	)

	all, err := svc.GetResults(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "subject-line", all[0].TestID)

	one, err := svc.GetResults(ctx, "subject-line")
	require.NoError(t, err)
	assert.True(t, one[0].Significant)

	_, err = svc.GetResults(ctx, "three-way")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsupportedVariants))
}
