// internal/workers/tracking/record-conversion/handler_test.go
package recordconversion

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
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordConversion(ctx context.Context, in tracking.ConversionInput) (*tracking.ConversionResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.ConversionResult), args.Error(1)
}

func conversionResult() *tracking.ConversionResult {
	return &tracking.ConversionResult{
		ConversionID: "conv-1",
		LeadID:       "lead-1",
		Attribution: models.AttributionModel{
			ConversionValue: 100,
			FirstTouch:      []models.CreditAllocation{{TouchpointID: "tp-1", Credit: 100, Value: 100}},
			Linear: []models.CreditAllocation{
				{TouchpointID: "tp-1", Credit: 50, Value: 50},
				{TouchpointID: "tp-2", Credit: 50, Value: 50},
			},
		},
		Executions: []string{"exec-9"},
	}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name        string
		variables   map[string]interface{}
		wantModel   string
		wantCredits int
	}{
		{
			name:        "defaults to linear",
			variables:   map[string]interface{}{"leadId": "lead-1", "eventType": "purchase", "value": 100.0},
			wantModel:   "linear",
			wantCredits: 2,
		},
		{
			name:        "explicit first touch",
			variables:   map[string]interface{}{"leadId": "lead-1", "eventType": "purchase", "value": 100.0, "attributionModel": "first_touch"},
			wantModel:   "first_touch",
			wantCredits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockRecorder)
			rec.On("RecordConversion", mock.Anything, tracking.ConversionInput{
				LeadID:    "lead-1",
				EventType: models.ConversionPurchase,
				Value:     100,
			}).Return(conversionResult(), nil)

			out, err := NewHandler(rec, logger.NewTestLogger(t)).Execute(context.Background(), tt.variables)
			require.NoError(t, err)
			assert.Equal(t, "conv-1", out["conversionId"])
			assert.Equal(t, tt.wantModel, out["attributionModel"])
			assert.Len(t, out["attributionCredits"], tt.wantCredits)
			assert.Equal(t, []string{"exec-9"}, out["executionIds"])
			rec.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
	}{
		{"missing lead", map[string]interface{}{"eventType": "purchase"}},
		{"unknown event", map[string]interface{}{"leadId": "l", "eventType": "refund"}},
		{"negative value", map[string]interface{}{"leadId": "l", "eventType": "purchase", "value": -3.0}},
		{"bad currency", map[string]interface{}{"leadId": "l", "eventType": "purchase", "currency": "dollars"}},
		{"unknown model", map[string]interface{}{"leadId": "l", "eventType": "demo", "attributionModel": "w_shaped"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockRecorder)
			_, err := NewHandler(rec, logger.NewNoOpLogger()).Execute(context.Background(), tt.variables)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
			rec.AssertNotCalled(t, "RecordConversion", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Execute_PassesConversionKey(t *testing.T) {
	res := conversionResult()
	res.Duplicate = true
	res.Executions = nil

	rec := new(MockRecorder)
	rec.On("RecordConversion", mock.Anything, tracking.ConversionInput{
		ConversionID: "order-77",
		LeadID:       "lead-1",
		EventType:    models.ConversionPurchase,
		Value:        100,
	}).Return(res, nil)

	out, err := NewHandler(rec, logger.NewTestLogger(t)).Execute(context.Background(), map[string]interface{}{
		"conversionId": "order-77",
		"leadId":       "lead-1",
		"eventType":    "purchase",
		"value":        100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["duplicate"])
	rec.AssertExpectations(t)
}
