// internal/workflow/router.go
package workflow

import (
	"context"
	stderrors "errors"
	"sort"

	"lead-automation/internal/common/metrics"
	"lead-automation/internal/condition"
	"lead-automation/internal/models"
)

// maxTriggerDepth bounds chains of workflows triggering each other, such as
// an add_tag action matching another workflow's tag trigger.
const maxTriggerDepth = 5

type depthKey struct{}

func triggerDepth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Event is something that happened to a lead and may start workflows.
type Event struct {
	Type          models.TriggerType
	LeadID        string
	Touchpoint    *models.Touchpoint
	PreviousScore int
	Score         int
	FromStage     models.Stage
	Stage         models.Stage
	Tag           string
	Conversion    *models.ConversionEvent
}

// Data is the trigger data recorded on executions started by the event and
// the record trigger filters are evaluated against.
func (ev Event) Data() map[string]interface{} {
	data := map[string]interface{}{
		"type":   string(ev.Type),
		"leadId": ev.LeadID,
	}
	switch ev.Type {
	case models.TriggerTouchpointRecorded:
		if ev.Touchpoint != nil {
			data["touchpoint"] = ev.Touchpoint.Record()
		}
	case models.TriggerScoreThreshold:
		data["score"] = ev.Score
		data["previousScore"] = ev.PreviousScore
	case models.TriggerStageChanged:
		data["stage"] = string(ev.Stage)
		data["fromStage"] = string(ev.FromStage)
	case models.TriggerTagAdded:
		data["tag"] = ev.Tag
	case models.TriggerConversion:
		if c := ev.Conversion; c != nil {
			data["conversion"] = map[string]interface{}{
				"id":        c.ID,
				"eventType": string(c.EventType),
				"value":     c.Value,
				"currency":  c.Currency,
			}
		}
	}
	return data
}

// Matches reports whether ev satisfies the workflow's trigger, filters
// included. Scheduled and manual triggers never match events.
func Matches(wf *models.Workflow, ev Event) bool {
	t := wf.Trigger
	if t.Type != ev.Type {
		return false
	}

	switch t.Type {
	case models.TriggerTouchpointRecorded:
		if ev.Touchpoint == nil {
			return false
		}
		if len(t.TouchpointTypes) > 0 && !containsType(t.TouchpointTypes, ev.Touchpoint.Type) {
			return false
		}
	case models.TriggerScoreThreshold:
		// Fires once when the score crosses the threshold upward.
		if !(ev.PreviousScore < t.MinScore && ev.Score >= t.MinScore) {
			return false
		}
	case models.TriggerStageChanged:
		if t.Stage != "" && t.Stage != ev.Stage {
			return false
		}
	case models.TriggerTagAdded:
		if t.Tag != "" && t.Tag != ev.Tag {
			return false
		}
	case models.TriggerConversion:
	default:
		return false
	}

	return condition.All(ev.Data(), t.Filters)
}

func containsType(types []models.TouchpointType, t models.TouchpointType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// HandleEvent triggers every active workflow whose trigger matches ev, in
// workflow id order. Failures of one workflow do not stop the others.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) ([]*models.WorkflowExecution, error) {
	depth := triggerDepth(ctx)
	if depth >= maxTriggerDepth {
		metrics.WorkflowTriggersSkipped.WithLabelValues("depth").Inc()
		e.logger.Warn("Trigger chain too deep, event dropped", map[string]interface{}{
			"leadId": ev.LeadID,
			"type":   string(ev.Type),
			"depth":  depth,
		})
		return nil, nil
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	workflows, err := e.repo.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	var (
		started []*models.WorkflowExecution
		errs    []error
	)
	data := ev.Data()
	for _, wf := range workflows {
		if !wf.Active || !Matches(wf, ev) {
			continue
		}
		exec, err := e.TriggerWorkflow(ctx, wf.ID, ev.LeadID, data)
		if err != nil {
			e.logger.Error("Failed to trigger workflow", map[string]interface{}{
				"workflowId": wf.ID,
				"leadId":     ev.LeadID,
				"error":      err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		if exec != nil {
			started = append(started, exec)
		}
	}
	return started, stderrors.Join(errs...)
}
