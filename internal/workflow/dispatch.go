// internal/workflow/dispatch.go
package workflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"lead-automation/internal/actions"
	"lead-automation/internal/common/errors"
	"lead-automation/internal/models"
)

// dispatch runs one action, retrying retryable failures when the action
// type has a retry policy. The returned map is merged into the execution
// data.
func (e *Engine) dispatch(ctx context.Context, wf *models.Workflow, exec *models.WorkflowExecution, action models.Action) (map[string]interface{}, error) {
	policy, ok := e.retries[action.Type()]
	attempts := 1
	if ok && policy.MaxAttempts > 1 {
		attempts = policy.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(policy.InitialDelay) * math.Pow(2, float64(attempt-1)))
			e.logger.Warn("Retrying workflow action", map[string]interface{}{
				"executionId": exec.ID,
				"actionId":    action.ID,
				"attempt":     attempt + 1,
				"delayMs":     delay.Milliseconds(),
				"error":       lastErr.Error(),
			})
			if err := e.sleep(ctx, delay); err != nil {
				return nil, lastErr
			}
		}

		out, err := e.execute(ctx, wf, exec, action)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

// execute is the closed switch over the action union.
func (e *Engine) execute(ctx context.Context, wf *models.Workflow, exec *models.WorkflowExecution, action models.Action) (map[string]interface{}, error) {
	switch cfg := action.Config.(type) {
	case models.SendEmailConfig:
		return e.sendEmail(ctx, exec, cfg)
	case models.AddTagConfig:
		return nil, e.addTag(ctx, exec, cfg)
	case models.RemoveTagConfig:
		return nil, e.withLead(ctx, exec.LeadID, func(lead *models.Lead) (bool, error) {
			return lead.RemoveTag(cfg.Tag), nil
		})
	case models.UpdateFieldConfig:
		return nil, e.withLead(ctx, exec.LeadID, func(lead *models.Lead) (bool, error) {
			return true, applyField(lead, cfg.Field, cfg.Value)
		})
	case models.AssignLeadConfig:
		return e.assignLead(ctx, wf, exec, action.ID, cfg)
	case models.CreateTaskConfig:
		return e.createTask(ctx, exec, cfg)
	case models.WebhookConfig:
		return e.callWebhook(ctx, wf, exec, cfg)
	case models.SplitTestConfig:
		return e.splitTest(ctx, exec, cfg)
	case models.WaitConfig:
		return nil, nil
	default:
		return nil, errors.NewUnknownActionTypeError(string(action.Type()))
	}
}

func (e *Engine) sendEmail(ctx context.Context, exec *models.WorkflowExecution, cfg models.SendEmailConfig) (map[string]interface{}, error) {
	if e.collab.Email == nil {
		return nil, errors.NewActionExecutionFailedError(string(models.ActionSendEmail), fmt.Errorf("no email sender configured"))
	}
	lead, err := e.repo.GetLead(ctx, exec.LeadID)
	if err != nil {
		return nil, err
	}
	if lead.Email == "" {
		return nil, errors.NewActionExecutionFailedError(string(models.ActionSendEmail), fmt.Errorf("lead %s has no email address", lead.ID))
	}

	data := lead.Record()
	data["execution"] = exec.ExecutionData
	messageID, err := e.collab.Email.SendEmail(ctx, actions.EmailMessage{
		To:         lead.Email,
		From:       cfg.From,
		Subject:    actions.RenderTemplate(cfg.Subject, data),
		Body:       actions.RenderTemplate(cfg.Body, data),
		HTMLBody:   actions.RenderTemplate(cfg.HTMLBody, data),
		TemplateID: cfg.TemplateID,
		LeadID:     lead.ID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"lastEmailMessageId": messageID}, nil
}

func (e *Engine) addTag(ctx context.Context, exec *models.WorkflowExecution, cfg models.AddTagConfig) error {
	var added bool
	err := e.withLead(ctx, exec.LeadID, func(lead *models.Lead) (bool, error) {
		added = lead.AddTag(cfg.Tag)
		return added, nil
	})
	if err != nil || !added {
		return err
	}

	// The lead lock is released; tag triggers may start other workflows.
	if _, err := e.HandleEvent(ctx, Event{Type: models.TriggerTagAdded, LeadID: exec.LeadID, Tag: cfg.Tag}); err != nil {
		e.logger.Warn("Tag trigger dispatch failed", map[string]interface{}{
			"leadId": exec.LeadID,
			"tag":    cfg.Tag,
			"error":  err.Error(),
		})
	}
	return nil
}

func (e *Engine) assignLead(ctx context.Context, wf *models.Workflow, exec *models.WorkflowExecution, actionID string, cfg models.AssignLeadConfig) (map[string]interface{}, error) {
	assignee := cfg.Assignee
	if assignee == "" {
		assignee = e.pools.next(wf.ID+":"+actionID, cfg.Pool)
	}
	if assignee == "" {
		return nil, errors.NewInvalidDefinitionError(fmt.Sprintf("workflow %s: assign_lead needs an assignee or a non-empty pool", wf.ID))
	}

	var assigned *models.Lead
	err := e.withLead(ctx, exec.LeadID, func(lead *models.Lead) (bool, error) {
		lead.AssignedTo = assignee
		assigned = lead.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if e.collab.Assignments != nil {
		if err := e.collab.Assignments.NotifyAssignment(ctx, actions.Assignment{
			LeadID:     assigned.ID,
			LeadEmail:  assigned.Email,
			Assignee:   assignee,
			Score:      assigned.Score,
			WorkflowID: wf.ID,
			AssignedAt: e.now(),
		}); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{"assignedTo": assignee}, nil
}

func (e *Engine) createTask(ctx context.Context, exec *models.WorkflowExecution, cfg models.CreateTaskConfig) (map[string]interface{}, error) {
	if e.collab.Tasks == nil {
		return nil, errors.NewActionExecutionFailedError(string(models.ActionCreateTask), fmt.Errorf("no task creator configured"))
	}
	lead, err := e.repo.GetLead(ctx, exec.LeadID)
	if err != nil {
		return nil, err
	}

	data := lead.Record()
	task := actions.Task{
		Title:       actions.RenderTemplate(cfg.Title, data),
		Description: actions.RenderTemplate(cfg.Description, data),
		Assignee:    cfg.Assignee,
		Priority:    cfg.Priority,
		LeadID:      lead.ID,
		LeadEmail:   lead.Email,
	}
	if task.Assignee == "" {
		task.Assignee = lead.AssignedTo
	}
	if cfg.DueInHours > 0 {
		task.DueAt = e.now().Add(time.Duration(cfg.DueInHours) * time.Hour)
	}

	taskID, err := e.collab.Tasks.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"taskId": taskID}, nil
}

func (e *Engine) callWebhook(ctx context.Context, wf *models.Workflow, exec *models.WorkflowExecution, cfg models.WebhookConfig) (map[string]interface{}, error) {
	if e.collab.Webhooks == nil {
		return nil, errors.NewActionExecutionFailedError(string(models.ActionWebhook), fmt.Errorf("no webhook dispatcher configured"))
	}

	payload := map[string]interface{}{
		"workflowId":    wf.ID,
		"executionId":   exec.ID,
		"leadId":        exec.LeadID,
		"triggerData":   exec.TriggerData,
		"executionData": exec.ExecutionData,
		"sentAt":        e.now().UTC().Format(time.RFC3339),
	}
	if cfg.IncludeLead {
		lead, err := e.repo.GetLead(ctx, exec.LeadID)
		if err != nil {
			return nil, err
		}
		payload["lead"] = lead.Record()
	}

	status, err := e.collab.Webhooks.Dispatch(ctx, actions.WebhookRequest{
		URL:     cfg.URL,
		Method:  cfg.Method,
		Headers: cfg.Headers,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"webhookStatus": status}, nil
}

func (e *Engine) splitTest(ctx context.Context, exec *models.WorkflowExecution, cfg models.SplitTestConfig) (map[string]interface{}, error) {
	if e.collab.SplitTests == nil {
		return nil, errors.NewActionExecutionFailedError(string(models.ActionSplitTest), fmt.Errorf("no split tester configured"))
	}
	variant, err := e.collab.SplitTests.Assign(ctx, cfg.TestID, exec.LeadID)
	if err != nil {
		return nil, err
	}

	tests := map[string]interface{}{}
	if prev, ok := exec.ExecutionData["splitTests"].(map[string]interface{}); ok {
		for k, v := range prev {
			tests[k] = v
		}
	}
	tests[cfg.TestID] = variant
	return map[string]interface{}{
		"variant":    variant,
		"splitTests": tests,
	}, nil
}

// withLead applies fn to the stored lead under the lead lock and saves it
// when fn reports a change.
func (e *Engine) withLead(ctx context.Context, leadID string, fn func(*models.Lead) (bool, error)) error {
	unlock := e.leadLocks.Lock(leadID)
	defer unlock()

	lead, err := e.repo.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	changed, err := fn(lead)
	if err != nil || !changed {
		return err
	}
	lead.UpdatedAt = e.now()
	return e.repo.UpdateLead(ctx, lead)
}

// roundRobin hands out pool members in turn, per pool key.
type roundRobin struct {
	mu     sync.Mutex
	cursor map[string]int
}

func newRoundRobin() *roundRobin {
	return &roundRobin{cursor: map[string]int{}}
}

func (r *roundRobin) next(key string, pool []string) string {
	members := make([]string, 0, len(pool))
	for _, p := range pool {
		if p = strings.TrimSpace(p); p != "" {
			members = append(members, p)
		}
	}
	if len(members) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.cursor[key] % len(members)
	r.cursor[key] = i + 1
	return members[i]
}
