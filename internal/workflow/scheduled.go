// internal/workflow/scheduled.go
package workflow

import (
	"context"
	"time"

	"lead-automation/internal/condition"
	"lead-automation/internal/models"
)

// DispatchScheduled starts every active scheduled workflow whose time has
// come, once, for each lead in its target segment (all leads when no
// segment is set). It returns the number of executions started and is safe
// to call repeatedly.
func (e *Engine) DispatchScheduled(ctx context.Context) (int, error) {
	workflows, err := e.repo.ListWorkflows(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	started := 0
	for _, wf := range workflows {
		t := wf.Trigger
		if !wf.Active || t.Type != models.TriggerScheduled || t.ScheduledAt == nil || t.ScheduledAt.After(now) || wf.LastDispatchedAt != nil {
			continue
		}

		claimed, err := e.repo.MarkDispatched(ctx, wf.ID, now)
		if err != nil {
			return started, err
		}
		if !claimed {
			continue
		}

		n, err := e.dispatchCampaign(ctx, wf, now)
		started += n
		if err != nil {
			return started, err
		}
		e.logger.Info("Scheduled workflow dispatched", map[string]interface{}{
			"workflowId": wf.ID,
			"executions": n,
		})
	}
	return started, nil
}

func (e *Engine) dispatchCampaign(ctx context.Context, wf *models.Workflow, now time.Time) (int, error) {
	var audience []models.Condition
	if wf.Trigger.SegmentID != "" {
		seg, err := e.repo.GetSegment(ctx, wf.Trigger.SegmentID)
		if err != nil {
			return 0, err
		}
		audience = seg.Conditions
	}

	leads, err := e.repo.ListLeads(ctx)
	if err != nil {
		return 0, err
	}

	data := map[string]interface{}{
		"type":         string(models.TriggerScheduled),
		"scheduledAt":  wf.Trigger.ScheduledAt.UTC().Format(time.RFC3339),
		"dispatchedAt": now.UTC().Format(time.RFC3339),
	}

	started := 0
	for _, lead := range leads {
		record := lead.Record()
		if !condition.All(record, audience) || !condition.All(record, wf.Trigger.Filters) {
			continue
		}
		exec, err := e.TriggerWorkflow(ctx, wf.ID, lead.ID, data)
		if err != nil {
			e.logger.Error("Failed to start scheduled workflow for lead", map[string]interface{}{
				"workflowId": wf.ID,
				"leadId":     lead.ID,
				"error":      err.Error(),
			})
			continue
		}
		if exec != nil {
			started++
		}
	}
	return started, nil
}
