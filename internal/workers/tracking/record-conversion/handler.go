// internal/workers/tracking/record-conversion/handler.go
package recordconversion

import (
	"context"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
	"lead-automation/internal/tracking"
)

const (
	TaskType  = "tracking.conversion.record"
	ConfigKey = "record-conversion"
)

type Recorder interface {
	RecordConversion(ctx context.Context, in tracking.ConversionInput) (*tracking.ConversionResult, error)
}

type Handler struct {
	recorder Recorder
	logger   logger.Logger
}

func NewHandler(recorder Recorder, log logger.Logger) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) TaskType() string { return TaskType }

func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (map[string]interface{}, error) {
	var input Input
	if err := validation.DecodeInput(variables, GetInputSchema(), &input); err != nil {
		return nil, err
	}
	model := models.AttributionModelType(input.Model)
	if model == "" {
		model = models.AttributionLinear
	}

	res, err := h.recorder.RecordConversion(ctx, tracking.ConversionInput{
		ConversionID: input.ConversionID,
		LeadID:       input.LeadID,
		EventType:    models.ConversionEventType(input.EventType),
		Value:        input.Value,
		Currency:     input.Currency,
		OccurredAt:   input.OccurredAt,
	})
	if err != nil {
		return nil, err
	}

	dist := res.Attribution.Distribution(model)
	credits := make([]map[string]interface{}, len(dist))
	for i, c := range dist {
		credits[i] = map[string]interface{}{
			"touchpointId": c.TouchpointID,
			"credit":       c.Credit,
			"value":        c.Value,
		}
	}

	h.logger.Debug("Conversion job handled", map[string]interface{}{
		"leadId":       res.LeadID,
		"conversionId": res.ConversionID,
		"model":        string(model),
	})
	out := &Output{
		ConversionID: res.ConversionID,
		LeadID:       res.LeadID,
		Model:        string(model),
		Credits:      credits,
		ExecutionIDs: res.Executions,
		Duplicate:    res.Duplicate,
	}
	return out.Variables(), nil
}
