// internal/workflow/analytics.go
package workflow

import (
	"context"

	"lead-automation/internal/models"
	"lead-automation/internal/store"
)

// Report is the dashboard view of one workflow.
type Report struct {
	WorkflowID               string                        `json:"workflowId"`
	Name                     string                        `json:"name"`
	Active                   bool                          `json:"active"`
	TotalExecutions          int                           `json:"totalExecutions"`
	CompletedExecutions      int                           `json:"completedExecutions"`
	FailedExecutions         int                           `json:"failedExecutions"`
	CancelledExecutions      int                           `json:"cancelledExecutions"`
	ActiveExecutions         int                           `json:"activeExecutions"`
	CompletionRate           float64                       `json:"completionRate"`
	AverageCompletionSeconds float64                       `json:"averageCompletionSeconds"`
	ActionPerformance        map[string]models.ActionStats `json:"actionPerformance"`
}

// GetWorkflowAnalytics combines the stored rolling analytics with a count
// of executions still running or paused.
func (e *Engine) GetWorkflowAnalytics(ctx context.Context, workflowID string) (*Report, error) {
	wf, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	execs, err := e.repo.ListExecutions(ctx, store.ExecutionFilter{WorkflowID: workflowID})
	if err != nil {
		return nil, err
	}
	active := 0
	for _, x := range execs {
		if x.Status == models.ExecutionRunning || x.Status == models.ExecutionPaused {
			active++
		}
	}

	a := wf.Analytics
	report := &Report{
		WorkflowID:               wf.ID,
		Name:                     wf.Name,
		Active:                   wf.Active,
		TotalExecutions:          a.TotalExecutions,
		CompletedExecutions:      a.CompletedExecutions,
		FailedExecutions:         a.FailedExecutions,
		CancelledExecutions:      a.CancelledExecutions,
		ActiveExecutions:         active,
		AverageCompletionSeconds: a.AverageCompletionSeconds,
		ActionPerformance:        make(map[string]models.ActionStats, len(a.ActionStats)),
	}
	if a.TotalExecutions > 0 {
		report.CompletionRate = float64(a.CompletedExecutions) / float64(a.TotalExecutions) * 100
	}
	for id, s := range a.ActionStats {
		report.ActionPerformance[id] = *s
	}
	return report, nil
}
