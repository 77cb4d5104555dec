// internal/workers/automation/trigger-workflow/handler.go
package triggerworkflow

import (
	"context"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
)

const (
	TaskType  = "automation.workflow.trigger"
	ConfigKey = "trigger-workflow"
)

type Input struct {
	WorkflowID string                 `json:"workflowId"`
	LeadID     string                 `json:"leadId"`
	Data       map[string]interface{} `json:"data"`
}

type Trigger interface {
	TriggerWorkflow(ctx context.Context, workflowID, leadID string, data map[string]interface{}) (*models.WorkflowExecution, error)
}

type Handler struct {
	engine Trigger
	logger logger.Logger
}

func NewHandler(engine Trigger, log logger.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) TaskType() string { return TaskType }

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"workflowId", "leadId"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"workflowId": {Type: "string", MinLength: validation.IntPtr(1)},
			"leadId":     {Type: "string", MinLength: validation.IntPtr(1)},
			"data": {
				Type:        "object",
				Description: "Trigger data stored on the execution",
			},
		},
	}
}

// Execute starts the workflow for the lead. A skipped trigger (inactive
// workflow, execution limit or cooldown) completes the job with
// triggered=false.
func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (map[string]interface{}, error) {
	var input Input
	if err := validation.DecodeInput(variables, GetInputSchema(), &input); err != nil {
		return nil, err
	}
	data := input.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	if _, ok := data["type"]; !ok {
		data["type"] = string(models.TriggerManual)
	}

	exec, err := h.engine.TriggerWorkflow(ctx, input.WorkflowID, input.LeadID, data)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		h.logger.Info("Workflow trigger skipped", map[string]interface{}{
			"workflowId": input.WorkflowID,
			"leadId":     input.LeadID,
		})
		return map[string]interface{}{
			"triggered":       false,
			"executionId":     "",
			"executionStatus": "",
		}, nil
	}

	return map[string]interface{}{
		"triggered":          true,
		"executionId":        exec.ID,
		"executionStatus":    string(exec.Status),
		"currentActionIndex": exec.CurrentActionIndex,
	}, nil
}
