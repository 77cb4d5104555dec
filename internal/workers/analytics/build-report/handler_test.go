// internal/workers/analytics/build-report/handler_test.go
package buildreport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/models"
	"lead-automation/internal/tracking"
	"lead-automation/internal/workflow"
)

// ==========================
// Mocks
// ==========================

type MockReporters struct {
	mock.Mock
}

func (m *MockReporters) GetLeadAnalytics(ctx context.Context) (*tracking.LeadAnalytics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.LeadAnalytics), args.Error(1)
}

func (m *MockReporters) GetWorkflowAnalytics(ctx context.Context, id string) (*workflow.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Report), args.Error(1)
}

func (m *MockReporters) GetResults(ctx context.Context, testID string) ([]models.ABTestResult, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ABTestResult), args.Error(1)
}

func newHandler(t *testing.T, m *MockReporters) *Handler {
	return NewHandler(m, m, m, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestHandler_Execute_Reports(t *testing.T) {
	leads := &tracking.LeadAnalytics{TotalLeads: 3}
	wf := &workflow.Report{WorkflowID: "welcome", TotalExecutions: 7}
	results := []models.ABTestResult{{TestID: "subject", Significant: true}}

	tests := []struct {
		name      string
		variables map[string]interface{}
		setup     func(m *MockReporters)
		want      interface{}
	}{
		{
			name:      "leads",
			variables: map[string]interface{}{"report": "leads"},
			setup:     func(m *MockReporters) { m.On("GetLeadAnalytics", mock.Anything).Return(leads, nil) },
			want:      leads,
		},
		{
			name:      "workflow",
			variables: map[string]interface{}{"report": "workflow", "workflowId": "welcome"},
			setup:     func(m *MockReporters) { m.On("GetWorkflowAnalytics", mock.Anything, "welcome").Return(wf, nil) },
			want:      wf,
		},
		{
			name:      "all tests",
			variables: map[string]interface{}{"report": "abtest"},
			setup:     func(m *MockReporters) { m.On("GetResults", mock.Anything, "").Return(results, nil) },
			want:      results,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockReporters)
			tt.setup(m)

			out, err := newHandler(t, m).Execute(context.Background(), tt.variables)
			require.NoError(t, err)
			assert.Equal(t, tt.variables["report"], out["reportType"])
			assert.Equal(t, tt.want, out["report"])
			m.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	m := new(MockReporters)
	m.On("GetResults", mock.Anything, "three-way").Return(nil, errors.NewUnsupportedVariantCountError(3))
	h := newHandler(t, m)

	_, err := h.Execute(context.Background(), map[string]interface{}{"report": "workflow"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = h.Execute(context.Background(), map[string]interface{}{"report": "funnel"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = h.Execute(context.Background(), map[string]interface{}{"report": "abtest", "testId": "three-way"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedVariants))
}
