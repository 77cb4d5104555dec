// internal/workers/tracking/record-touchpoint/handler.go
package recordtouchpoint

import (
	"context"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
	"lead-automation/internal/tracking"
)

const TaskType = "tracking.touchpoint.record"

// ConfigKey is the workers.<key> section in the application config.
const ConfigKey = "record-touchpoint"

type Recorder interface {
	RecordTouchpoint(ctx context.Context, in tracking.TouchpointInput) (*tracking.TouchpointResult, error)
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
	input, err := parseInput(variables)
	if err != nil {
		return nil, err
	}

	res, err := h.recorder.RecordTouchpoint(ctx, tracking.TouchpointInput{
		LeadID:     input.LeadID,
		Email:      input.Email,
		Type:       models.TouchpointType(input.Type),
		Timestamp:  input.Timestamp,
		Source:     input.Source,
		Engagement: input.Engagement,
		Content:    input.Content,
		Metadata:   input.Metadata,
		Profile: tracking.Profile{
			FirstName: input.Profile.FirstName,
			LastName:  input.Profile.LastName,
			JobTitle:  input.Profile.JobTitle,
			Phone:     input.Profile.Phone,
			Source:    input.Profile.Source,
			Company:   input.Profile.Company,
		},
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		TouchpointID: res.TouchpointID,
		LeadID:       res.LeadID,
		LeadCreated:  res.LeadCreated,
		LeadScore:    res.Score,
		JourneyStage: string(res.Stage),
		StageChanged: res.StageChanged,
		ExecutionIDs: res.Executions,
	}
	h.logger.Debug("Touchpoint job handled", map[string]interface{}{
		"leadId":     out.LeadID,
		"executions": len(out.ExecutionIDs),
	})
	return out.Variables(), nil
}

func parseInput(variables map[string]interface{}) (*Input, error) {
	var input Input
	if err := validation.DecodeInput(variables, GetInputSchema(), &input); err != nil {
		return nil, err
	}
	return &input, nil
}
