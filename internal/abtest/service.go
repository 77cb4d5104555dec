// internal/abtest/service.go
package abtest

import (
	"context"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/models"
	"lead-automation/internal/store"
)

// Service records visitors and conversions against stored tests and
// reports their significance.
type Service struct {
	tests  store.ABTestStore
	logger logger.Logger
}

func NewService(tests store.ABTestStore, log logger.Logger) *Service {
	return &Service{
		tests:  tests,
		logger: log.WithFields(map[string]interface{}{"component": "abtest"}),
	}
}

// Assign returns the lead's variant, assigning one and counting a visitor
// on first exposure.
func (s *Service) Assign(ctx context.Context, testID, leadID string) (string, error) {
	var variantID string
	err := s.tests.UpdateTest(ctx, testID, func(test *models.ABTest) error {
		if existing, ok := test.Assignments[leadID]; ok {
			variantID = existing
			return nil
		}
		if len(test.Variants) == 0 {
			return apperrors.NewUnsupportedVariantCountError(0)
		}
		variantID = pickVariant(test, leadID)
		if test.Assignments == nil {
			test.Assignments = map[string]string{}
		}
		test.Assignments[leadID] = variantID
		for i := range test.Variants {
			if test.Variants[i].ID == variantID {
				test.Variants[i].Visitors++
			}
		}
		if test.Status == "" || test.Status == models.ABTestDraft {
			test.Status = models.ABTestRunning
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return variantID, nil
}

// RecordConversion counts one conversion for the lead in every test it is
// assigned to. Repeat conversions by the same lead are not counted.
func (s *Service) RecordConversion(ctx context.Context, leadID string) (int, error) {
	tests, err := s.tests.ListTests(ctx)
	if err != nil {
		return 0, err
	}
	counted := 0
	for _, t := range tests {
		if _, ok := t.Assignments[leadID]; !ok || t.Converted[leadID] {
			continue
		}
		err := s.tests.UpdateTest(ctx, t.ID, func(test *models.ABTest) error {
			variantID, ok := test.Assignments[leadID]
			if !ok || test.Converted[leadID] {
				return nil
			}
			if test.Converted == nil {
				test.Converted = map[string]bool{}
			}
			test.Converted[leadID] = true
			for i := range test.Variants {
				if test.Variants[i].ID == variantID {
					test.Variants[i].Conversions++
				}
			}
			counted++
			return nil
		})
		if err != nil {
			return counted, err
		}
	}
	return counted, nil
}

// GetResults evaluates one test, or every test when testID is empty.
// Tests that do not have exactly two variants are skipped when listing all.
func (s *Service) GetResults(ctx context.Context, testID string) ([]models.ABTestResult, error) {
	if testID != "" {
		test, err := s.tests.GetTest(ctx, testID)
		if err != nil {
			return nil, err
		}
		res, err := Evaluate(test)
		if err != nil {
			return nil, err
		}
		return []models.ABTestResult{res}, nil
	}

	tests, err := s.tests.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ABTestResult, 0, len(tests))
	for _, t := range tests {
		res, err := Evaluate(t)
		if err != nil {
			s.logger.Warn("Skipping A/B test", map[string]interface{}{
				"testId":   t.ID,
				"variants": len(t.Variants),
				"error":    err.Error(),
			})
			continue
		}
		out = append(out, res)
	}
	return out, nil
}
