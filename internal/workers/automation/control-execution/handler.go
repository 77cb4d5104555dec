// internal/workers/automation/control-execution/handler.go
package controlexecution

import (
	"context"
	"fmt"
	"time"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
)

const (
	TaskType  = "automation.execution.control"
	ConfigKey = "control-execution"
)

const (
	OpPause  = "pause"
	OpResume = "resume"
	OpCancel = "cancel"
	OpGet    = "get"
)

type Input struct {
	ExecutionID string `json:"executionId"`
	Operation   string `json:"operation"`
}

type Controller interface {
	PauseExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	ResumeExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	CancelExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
	GetExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error)
}

type Handler struct {
	engine Controller
	logger logger.Logger
}

func NewHandler(engine Controller, log logger.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) TaskType() string { return TaskType }

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"executionId", "operation"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"executionId": {Type: "string", MinLength: validation.IntPtr(1)},
			"operation": {
				Type: "string",
				Enum: []string{OpPause, OpResume, OpCancel, OpGet},
			},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (map[string]interface{}, error) {
	var input Input
	if err := validation.DecodeInput(variables, GetInputSchema(), &input); err != nil {
		return nil, err
	}

	var (
		exec *models.WorkflowExecution
		err  error
	)
	switch input.Operation {
	case OpPause:
		exec, err = h.engine.PauseExecution(ctx, input.ExecutionID)
	case OpResume:
		exec, err = h.engine.ResumeExecution(ctx, input.ExecutionID)
	case OpCancel:
		exec, err = h.engine.CancelExecution(ctx, input.ExecutionID)
	case OpGet:
		exec, err = h.engine.GetExecution(ctx, input.ExecutionID)
	default:
		return nil, fmt.Errorf("unhandled operation %q", input.Operation)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("Execution control applied", map[string]interface{}{
		"executionId": exec.ID,
		"operation":   input.Operation,
		"status":      string(exec.Status),
	})

	out := map[string]interface{}{
		"executionId":        exec.ID,
		"executionStatus":    string(exec.Status),
		"currentActionIndex": exec.CurrentActionIndex,
		"waitingUntil":       "",
		"errorCount":         len(exec.Errors),
	}
	if exec.WaitingUntil != nil {
		out["waitingUntil"] = exec.WaitingUntil.UTC().Format(time.RFC3339)
	}
	return out, nil
}
