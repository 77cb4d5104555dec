// internal/models/execution.go
package models

import "time"

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

type ExecutionError struct {
	ActionID   string     `json:"actionId,omitempty"`
	ActionType ActionType `json:"actionType,omitempty"`
	Code       string     `json:"code,omitempty"`
	Message    string     `json:"message"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// WorkflowExecution is one activation of a workflow for one lead.
type WorkflowExecution struct {
	ID                 string                 `json:"id"`
	WorkflowID         string                 `json:"workflowId"`
	LeadID             string                 `json:"leadId"`
	Status             ExecutionStatus        `json:"status"`
	CurrentActionIndex int                    `json:"currentActionIndex"`
	ExecutionData      map[string]interface{} `json:"executionData"`
	TriggerData        map[string]interface{} `json:"triggerData,omitempty"`
	Errors             []ExecutionError       `json:"errors,omitempty"`
	// Actions and Conditions are the workflow definition as it stood when the
	// execution started. Later workflow edits apply to later executions.
	Actions    []Action    `json:"actions,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	// Generation identifies the loop allowed to drive the execution. Starting
	// a loop bumps it and commits from an older loop are dropped.
	Generation int `json:"generation"`
	// WaitingUntil is set while the execution is suspended on a wait action.
	WaitingUntil *time.Time `json:"waitingUntil,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (e *WorkflowExecution) Clone() *WorkflowExecution {
	if e == nil {
		return nil
	}
	c := *e
	c.ExecutionData = cloneMap(e.ExecutionData)
	c.TriggerData = cloneMap(e.TriggerData)
	c.Errors = append([]ExecutionError(nil), e.Errors...)
	c.Actions = append([]Action(nil), e.Actions...)
	c.Conditions = append([]Condition(nil), e.Conditions...)
	c.WaitingUntil = cloneTime(e.WaitingUntil)
	c.CompletedAt = cloneTime(e.CompletedAt)
	return &c
}
