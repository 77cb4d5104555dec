// internal/actions/crm.go
package actions

import (
	"context"
	stderrors "errors"
	"fmt"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/zoho"
)

// TaskAPI is the subset of the Zoho CRM client used for tasks.
type TaskAPI interface {
	CreateTask(ctx context.Context, task *zoho.Task) (string, error)
}

type ZohoTaskCreator struct {
	client TaskAPI
	logger logger.Logger
}

func NewZohoTaskCreator(client TaskAPI, log logger.Logger) *ZohoTaskCreator {
	return &ZohoTaskCreator{client: client, logger: log}
}

func (z *ZohoTaskCreator) CreateTask(ctx context.Context, task Task) (string, error) {
	zt := &zoho.Task{
		Subject:     task.Title,
		Description: task.Description,
		Priority:    zohoPriority(task.Priority),
	}
	if task.LeadEmail != "" {
		zt.Description = fmt.Sprintf("%s\n\nLead: %s (%s)", task.Description, task.LeadEmail, task.LeadID)
	}
	if task.Assignee != "" {
		zt.Description = fmt.Sprintf("%s\nAssignee: %s", zt.Description, task.Assignee)
	}
	if !task.DueAt.IsZero() {
		zt.DueDate = task.DueAt.UTC().Format("2006-01-02")
	}

	id, err := z.client.CreateTask(ctx, zt)
	if err != nil {
		stdErr := errors.NewCRMRequestFailedError("create_task", err)
		var se *zoho.StatusError
		if stderrors.As(err, &se) && !se.Temporary() {
			stdErr.Retryable = false
		}
		return "", stdErr
	}

	z.logger.Info("CRM task created", map[string]interface{}{
		"leadId": task.LeadID,
		"taskId": id,
	})
	return id, nil
}

func zohoPriority(p string) string {
	switch p {
	case "high", "High":
		return "High"
	case "low", "Low":
		return "Low"
	default:
		return "Normal"
	}
}
